package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/raceweek-stats/internal/domain/credential"
	qb "github.com/riskibarqy/raceweek-stats/internal/platform/querybuilder"
)

var adminAccountColumns = []string{
	"account_id",
	"access_token",
	"refresh_token",
	"access_token_expires_at",
	"updated_at",
}

type CredentialRepository struct {
	db *sqlx.DB
}

func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) ResolveAdminAccountID(ctx context.Context, accountID string) (string, bool, error) {
	query, args, err := buildResolveAdminAccountQuery(accountID)
	if err != nil {
		return "", false, fmt.Errorf("build resolve admin account query: %w", err)
	}

	var resolved string
	if err := r.db.GetContext(ctx, &resolved, query, args...); err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve admin account: %w", err)
	}
	return resolved, true, nil
}

// WithLockedToken holds the account row with SELECT ... FOR UPDATE while fn
// runs, and writes the token back in the same transaction when fn changed it.
func (r *CredentialRepository) WithLockedToken(ctx context.Context, accountID string, fn credential.LockedFunc) (credential.AccessToken, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return credential.AccessToken{}, fmt.Errorf("begin tx lock admin token: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query, args, err := buildLockAdminTokenQuery(accountID)
	if err != nil {
		return credential.AccessToken{}, fmt.Errorf("build lock admin token query: %w", err)
	}

	var row adminAccountTableModel
	if err := tx.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return credential.AccessToken{}, fmt.Errorf("%w: account_id=%s", credential.ErrAccountNotFound, accountID)
		}
		return credential.AccessToken{}, fmt.Errorf("lock admin token account_id=%s: %w", accountID, err)
	}

	current := row.toDomain()
	next, err := fn(ctx, current)
	if err != nil {
		return credential.AccessToken{}, err
	}

	if tokenChanged(current, next) {
		query, args, err := buildUpdateAdminTokenQuery(accountID, next)
		if err != nil {
			return credential.AccessToken{}, fmt.Errorf("build update admin token query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return credential.AccessToken{}, fmt.Errorf("update admin token account_id=%s: %w", accountID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return credential.AccessToken{}, fmt.Errorf("commit admin token tx account_id=%s: %w", accountID, err)
	}
	return next, nil
}

func buildResolveAdminAccountQuery(accountID string) (string, []any, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID != "" {
		return qb.Select("account_id").From(adminAccountsTable).
			Where(qb.Eq("account_id", accountID)).
			Limit(1).
			ToSQL()
	}
	return qb.Select("account_id").From(adminAccountsTable).
		Where(qb.Expr("is_admin = TRUE")).
		OrderBy("created_at ASC", "account_id ASC").
		Limit(1).
		ToSQL()
}

func buildLockAdminTokenQuery(accountID string) (string, []any, error) {
	return qb.Select(adminAccountColumns...).From(adminAccountsTable).
		Where(qb.Eq("account_id", strings.TrimSpace(accountID))).
		ForUpdate().
		ToSQL()
}

func buildUpdateAdminTokenQuery(accountID string, token credential.AccessToken) (string, []any, error) {
	return qb.Update(adminAccountsTable).
		Set("access_token", token.AccessToken).
		Set("refresh_token", token.RefreshToken).
		Set("access_token_expires_at", token.AccessTokenExpiresAt.UTC()).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("account_id", strings.TrimSpace(accountID))).
		ToSQL()
}

func tokenChanged(current, next credential.AccessToken) bool {
	return current.AccessToken != next.AccessToken ||
		current.RefreshToken != next.RefreshToken ||
		!current.AccessTokenExpiresAt.Equal(next.AccessTokenExpiresAt)
}
