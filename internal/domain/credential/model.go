package credential

import "time"

// AccessToken is the upstream credential pair owned by one admin account.
type AccessToken struct {
	AccountID            string
	AccessToken          string
	RefreshToken         string
	AccessTokenExpiresAt time.Time
	UpdatedAt            time.Time
}

// IsValid reports whether the access token outlives now by more than margin.
func (t AccessToken) IsValid(now time.Time, margin time.Duration) bool {
	if t.AccessToken == "" || t.AccessTokenExpiresAt.IsZero() {
		return false
	}
	return t.AccessTokenExpiresAt.After(now.Add(margin))
}
