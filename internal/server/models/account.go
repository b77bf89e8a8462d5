// Package models holds the server-side domain types shared by services and
// repositories.
package models

import "time"

// Account is a registered user as held by the credential store.
//
// Version is the optimistic-concurrency counter: the store increments it on
// every successful Persist and rejects writes carrying a stale value.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Verified     bool
	RefreshToken *string
	AvatarKey    *string
	Version      int64
	CreatedAt    time.Time
}

// HasRefreshToken reports whether token is the account's current refresh
// token. An empty stored value never matches.
func (a *Account) HasRefreshToken(token string) bool {
	return a.RefreshToken != nil && *a.RefreshToken != "" && *a.RefreshToken == token
}

// Clone returns a deep copy so callers can mutate it without touching shared
// state.
func (a *Account) Clone() *Account {
	c := *a
	if a.RefreshToken != nil {
		t := *a.RefreshToken
		c.RefreshToken = &t
	}
	if a.AvatarKey != nil {
		k := *a.AvatarKey
		c.AvatarKey = &k
	}
	return &c
}
