package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/raceweek-stats/internal/domain/credential"
	"github.com/riskibarqy/raceweek-stats/internal/metrics"
	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
	"github.com/riskibarqy/raceweek-stats/internal/platform/resilience"
)

const (
	defaultTokenSafetyMargin = 10 * time.Minute
	defaultTokenCheckTimeout = 30 * time.Second
)

// RefreshedToken is what the upstream auth endpoint hands back.
// An empty RefreshToken means the provider did not rotate it.
type RefreshedToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type TokenRefresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (RefreshedToken, error)
}

// CheckTimeout bounds the shared lock-and-refresh call, which outlives the
// context of the caller that started it.
type AccessTokenManagerConfig struct {
	AccountID    string
	SafetyMargin time.Duration
	CheckTimeout time.Duration
}

type AccessTokenManager struct {
	repo      credential.Repository
	refresher TokenRefresher
	cfg       AccessTokenManagerConfig
	flight    resilience.SingleFlight[string, credential.AccessToken]
	logger    *logging.Logger
	now       func() time.Time
}

func NewAccessTokenManager(
	repo credential.Repository,
	refresher TokenRefresher,
	cfg AccessTokenManagerConfig,
	logger *logging.Logger,
) *AccessTokenManager {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = defaultTokenSafetyMargin
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = defaultTokenCheckTimeout
	}
	cfg.AccountID = strings.TrimSpace(cfg.AccountID)

	return &AccessTokenManager{
		repo:      repo,
		refresher: refresher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// GetValidAccessToken returns the admin token, refreshing it first when it
// expires within the safety margin. The check and refresh run under the
// credential row lock, so concurrent callers see one refresh.
func (m *AccessTokenManager) GetValidAccessToken(ctx context.Context) (credential.AccessToken, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AccessTokenManager.GetValidAccessToken")
	defer span.End()

	accountID, exists, err := m.repo.ResolveAdminAccountID(ctx, m.cfg.AccountID)
	if err != nil {
		return credential.AccessToken{}, fmt.Errorf("resolve admin account: %w", err)
	}
	if !exists {
		if m.cfg.AccountID != "" {
			return credential.AccessToken{}, fmt.Errorf("%w: account_id=%s", ErrNoAdminAccount, m.cfg.AccountID)
		}
		return credential.AccessToken{}, ErrNoAdminAccount
	}

	token, shared, err := m.flight.DoDetached(ctx, accountID, m.cfg.CheckTimeout, func(ctx context.Context) (credential.AccessToken, error) {
		return m.repo.WithLockedToken(ctx, accountID, m.refreshIfNeeded)
	})
	if err != nil {
		if errors.Is(err, credential.ErrAccountNotFound) {
			return credential.AccessToken{}, fmt.Errorf("%w: account_id=%s", ErrNoAdminAccount, accountID)
		}
		return credential.AccessToken{}, err
	}
	if shared {
		m.logger.DebugContext(ctx, "access token shared from in-flight check", "account_id", accountID)
	}
	return token, nil
}

func (m *AccessTokenManager) refreshIfNeeded(ctx context.Context, current credential.AccessToken) (credential.AccessToken, error) {
	now := m.now().UTC()
	if current.IsValid(now, m.cfg.SafetyMargin) {
		metrics.TokenRefreshTotal.WithLabelValues(metrics.ResultSkipped).Inc()
		return current, nil
	}

	if strings.TrimSpace(current.RefreshToken) == "" {
		metrics.TokenRefreshTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return credential.AccessToken{}, fmt.Errorf("%w: account_id=%s", ErrNoRefreshToken, current.AccountID)
	}
	if m.refresher == nil {
		return credential.AccessToken{}, fmt.Errorf("%w: token refresher is not configured", ErrUpstreamAuthFailure)
	}

	m.logger.InfoContext(ctx, "refreshing access token",
		"account_id", current.AccountID,
		"expires_at", current.AccessTokenExpiresAt,
	)

	refreshed, err := m.refresher.RefreshAccessToken(ctx, current.RefreshToken)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues(metrics.ResultFailure).Inc()
		m.logger.WarnContext(ctx, "access token refresh failed", "account_id", current.AccountID, "error", err)
		if errors.Is(err, ErrNoRefreshToken) || errors.Is(err, ErrUpstreamAuthFailure) {
			return credential.AccessToken{}, fmt.Errorf("refresh access token account_id=%s: %w", current.AccountID, err)
		}
		return credential.AccessToken{}, fmt.Errorf("%w: refresh access token account_id=%s: %v", ErrUpstreamAuthFailure, current.AccountID, err)
	}
	if strings.TrimSpace(refreshed.AccessToken) == "" {
		metrics.TokenRefreshTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return credential.AccessToken{}, fmt.Errorf("%w: refresh returned empty access token", ErrUpstreamAuthFailure)
	}

	next := credential.AccessToken{
		AccountID:            current.AccountID,
		AccessToken:          refreshed.AccessToken,
		RefreshToken:         refreshed.RefreshToken,
		AccessTokenExpiresAt: refreshed.ExpiresAt.UTC(),
		UpdatedAt:            now,
	}
	if strings.TrimSpace(next.RefreshToken) == "" {
		next.RefreshToken = current.RefreshToken
	}

	metrics.TokenRefreshTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	m.logger.InfoContext(ctx, "access token refreshed",
		"account_id", next.AccountID,
		"expires_at", next.AccessTokenExpiresAt,
	)
	return next, nil
}
