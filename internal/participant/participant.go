// Package participant models who is spinning the wheel: an authenticated
// account, or a guest identified only by a self-reported email.
package participant

import (
	"errors"
	"strings"
)

// ErrNoIdentity is returned when neither a user id nor an email is present.
var ErrNoIdentity = errors.New("participant requires a user id or an email")

// Participant identifies a draw participant. UserID is empty for guests.
// Email is always stored normalized (trimmed, lower-cased) so it can serve
// as a ledger key.
type Participant struct {
	UserID string
	Email  string
}

// Guest creates a guest participant from a self-reported email.
func Guest(email string) Participant {
	return Participant{Email: NormalizeEmail(email)}
}

// Authenticated creates a participant backed by an account.
func Authenticated(userID, email string) Participant {
	return Participant{UserID: userID, Email: NormalizeEmail(email)}
}

// IsAuthenticated reports whether the participant has an account id.
func (p Participant) IsAuthenticated() bool {
	return p.UserID != ""
}

// Key returns the identity key used for reward ownership and the primary
// participation record: the user id when authenticated, otherwise the
// normalized email.
func (p Participant) Key() string {
	if p.IsAuthenticated() {
		return p.UserID
	}
	return p.Email
}

// Validate checks that the participant is usable as a draw identity.
// A guest without an email cannot participate.
func (p Participant) Validate() error {
	if p.UserID == "" && p.Email == "" {
		return ErrNoIdentity
	}
	return nil
}

// NormalizeEmail trims and lower-cases an email so both ledgers key on the
// same string regardless of how the address was typed.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
