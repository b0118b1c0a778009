package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	ErrTokenExpired        = errors.New("upstream token expired")
	ErrRateLimited         = errors.New("upstream rate limited")
	ErrUpstream            = errors.New("upstream error")
	ErrEmptyManifest       = errors.New("empty chunk manifest")
	ErrPartialChunkFailure = errors.New("partial chunk failure")
	ErrSchemaMismatch      = errors.New("schema mismatch")
	ErrNoAdminAccount      = errors.New("no admin account")
	ErrNoRefreshToken      = errors.New("no refresh token")
	ErrUpstreamAuthFailure = errors.New("upstream auth failure")
	ErrCacheWriteFailure   = errors.New("cache write failure")
)

// IsCredentialError reports errors that invalidate the whole sync cycle
// because no request can proceed without a working bearer token.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNoAdminAccount) ||
		errors.Is(err, ErrNoRefreshToken) ||
		errors.Is(err, ErrUpstreamAuthFailure)
}

// IsSeriesScopedError reports errors confined to a single series fetch.
func IsSeriesScopedError(err error) bool {
	return errors.Is(err, ErrPartialChunkFailure) ||
		errors.Is(err, ErrSchemaMismatch) ||
		errors.Is(err, ErrUpstream)
}
