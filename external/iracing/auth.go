package iracing

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/raceweek-stats/internal/metrics"
	"github.com/riskibarqy/raceweek-stats/internal/platform/logging"
	"github.com/riskibarqy/raceweek-stats/internal/usecase"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

const (
	defaultAuthBaseURL    = "https://oauth.iracing.com"
	tokenPath             = "/oauth2/token"
	fallbackTokenLifetime = time.Hour
)

type AuthConfig struct {
	HTTPClient       *http.Client
	AuthBaseURL      string
	ClientID         string
	ClientSecret     string
	MaskClientSecret bool
	Timeout          time.Duration
	Logger           *logging.Logger
}

// Authenticator exchanges a refresh token for a new access token.
type Authenticator struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	timeout    time.Duration
	logger     *logging.Logger
	now        func() time.Time
}

var _ usecase.TokenRefresher = (*Authenticator)(nil)

func NewAuthenticator(cfg AuthConfig) *Authenticator {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	authBaseURL := strings.TrimRight(strings.TrimSpace(cfg.AuthBaseURL), "/")
	if authBaseURL == "" {
		authBaseURL = defaultAuthBaseURL
	}

	clientID := strings.TrimSpace(cfg.ClientID)
	secret := cfg.ClientSecret
	if cfg.MaskClientSecret && secret != "" {
		secret = MaskSecret(secret, clientID)
	}

	return &Authenticator{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: secret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  authBaseURL + tokenPath,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logger,
		now:        time.Now,
	}
}

// MaskSecret derives the masked client secret the token endpoint expects:
// base64(sha256(secret + lower(trim(clientID)))).
func MaskSecret(secret, clientID string) string {
	sum := sha256.Sum256([]byte(secret + strings.ToLower(strings.TrimSpace(clientID))))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func (a *Authenticator) RefreshAccessToken(ctx context.Context, refreshToken string) (usecase.RefreshedToken, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return usecase.RefreshedToken{}, usecase.ErrNoRefreshToken
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)

	started := time.Now()
	token, err := a.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	metrics.UpstreamRequestDuration.WithLabelValues(metrics.OpRefreshToken).Observe(time.Since(started).Seconds())
	if err != nil {
		return usecase.RefreshedToken{}, a.classifyRefreshError(ctx, err)
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(metrics.OpRefreshToken, strconv.Itoa(http.StatusOK)).Inc()

	if strings.TrimSpace(token.AccessToken) == "" {
		return usecase.RefreshedToken{}, crerr.Wrap(usecase.ErrUpstreamAuthFailure, "token endpoint returned empty access_token")
	}

	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = a.now().Add(fallbackTokenLifetime)
		a.logger.WarnContext(ctx, "token response has no expiry, assuming default lifetime", "lifetime", fallbackTokenLifetime.String())
	}

	return usecase.RefreshedToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    expiresAt.UTC(),
	}, nil
}

func (a *Authenticator) classifyRefreshError(ctx context.Context, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !stderrors.As(err, &retrieveErr) {
		metrics.UpstreamRequestsTotal.WithLabelValues(metrics.OpRefreshToken, "error").Inc()
		a.logger.WarnContext(ctx, "token endpoint unreachable", "error", err)
		return crerr.Wrapf(usecase.ErrUpstreamAuthFailure, "refresh token request: %v", err)
	}

	status := 0
	if retrieveErr.Response != nil {
		status = retrieveErr.Response.StatusCode
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(metrics.OpRefreshToken, strconv.Itoa(status)).Inc()

	if retrieveErr.ErrorCode == "invalid_grant" {
		return crerr.WithDetail(
			crerr.Wrapf(usecase.ErrNoRefreshToken, "refresh token rejected status=%d", status),
			retrieveErr.ErrorDescription,
		)
	}
	return crerr.WithDetail(
		crerr.Wrapf(usecase.ErrUpstreamAuthFailure, "token endpoint status=%d code=%s", status, retrieveErr.ErrorCode),
		abbreviateBody(retrieveErr.Body),
	)
}
