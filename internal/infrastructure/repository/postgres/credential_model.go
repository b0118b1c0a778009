package postgres

import (
	"database/sql"

	"github.com/riskibarqy/raceweek-stats/internal/domain/credential"
)

const adminAccountsTable = "admin_accounts"

type adminAccountTableModel struct {
	AccountID            string         `db:"account_id"`
	AccessToken          sql.NullString `db:"access_token"`
	RefreshToken         sql.NullString `db:"refresh_token"`
	AccessTokenExpiresAt sql.NullTime   `db:"access_token_expires_at"`
	UpdatedAt            sql.NullTime   `db:"updated_at"`
}

func (m adminAccountTableModel) toDomain() credential.AccessToken {
	token := credential.AccessToken{
		AccountID:    m.AccountID,
		AccessToken:  m.AccessToken.String,
		RefreshToken: m.RefreshToken.String,
	}
	if m.AccessTokenExpiresAt.Valid {
		token.AccessTokenExpiresAt = m.AccessTokenExpiresAt.Time.UTC()
	}
	if m.UpdatedAt.Valid {
		token.UpdatedAt = m.UpdatedAt.Time.UTC()
	}
	return token
}
