// Package session persists zkLogin state across the OAuth redirect, which
// destroys everything held in memory. The record is a single JSON object
// under a fixed key; absence of the key means logged out.
package session

import (
	"time"
)

// StorageKey is the fixed key every backend stores the record under.
const StorageKey = "zklogin_session"

type State string

const (
	StateLoggedOut       State = "LOGGED_OUT"
	StatePendingRedirect State = "PENDING_REDIRECT"
	StateAwaitingProof   State = "AWAITING_PROOF"
	StateAuthenticated   State = "AUTHENTICATED"
)

// Session is the persisted login record. Zero fields are omitted so a
// partially filled Session can be merged on top of the stored one.
type Session struct {
	EphemeralKeyPair string     `json:"ephemeralKeyPair,omitempty"`
	Randomness       string     `json:"randomness,omitempty"`
	Nonce            string     `json:"nonce,omitempty"`
	MaxEpoch         uint64     `json:"maxEpoch,omitempty"`
	JWT              string     `json:"jwt,omitempty"`
	Salt             string     `json:"salt,omitempty"`
	Sub              string     `json:"sub,omitempty"`
	Aud              string     `json:"aud,omitempty"`
	UserAddress      string     `json:"userAddress,omitempty"`
	ZkProof          string     `json:"zkProof,omitempty"`
	AddressSeed      string     `json:"addressSeed,omitempty"`
	AttemptID        string     `json:"attemptId,omitempty"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
}

func (s *Session) pending() bool {
	return s.EphemeralKeyPair != "" && s.Randomness != "" && s.Nonce != "" && s.MaxEpoch > 0
}

// State derives the login state from the record alone.
func (s *Session) State() State {
	switch {
	case s == nil:
		return StateLoggedOut
	case s.pending() && s.JWT != "" && s.Salt != "" && s.ZkProof != "" &&
		s.AddressSeed != "" && s.UserAddress != "":
		return StateAuthenticated
	case s.pending() && s.JWT != "":
		return StateAwaitingProof
	case s.pending():
		return StatePendingRedirect
	default:
		return StateLoggedOut
	}
}

func (s *Session) IsAuthenticated() bool {
	return s.State() == StateAuthenticated
}
