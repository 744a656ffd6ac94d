package login

import (
	"github.com/pkg/errors"

	"github.com/yawdotio/totalbeginers-Suitters/address"
	"github.com/yawdotio/totalbeginers-Suitters/ephemeral"
	"github.com/yawdotio/totalbeginers-Suitters/ledger"
	"github.com/yawdotio/totalbeginers-Suitters/oauth"
	"github.com/yawdotio/totalbeginers-Suitters/prover"
	"github.com/yawdotio/totalbeginers-Suitters/salt"
)

var (
	ErrSessionLost         = errors.New("no pending login session")
	ErrNoToken             = errors.New("redirect carried no identity token")
	ErrStaleProof          = errors.New("proof belongs to a superseded login attempt")
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrEphemeralKeyExpired = errors.New("ephemeral key expired")
)

var (
	ErrEpochUnavailable   = ephemeral.ErrEpochUnavailable
	ErrSaltService        = salt.ErrSaltService
	ErrProofService       = prover.ErrProofService
	ErrAddressDerivation  = address.ErrAddressDerivation
	ErrSubmissionRejected = ledger.ErrSubmissionRejected
	ErrInvalidToken       = oauth.ErrInvalidToken
)

// Retryable reports whether repeating the failed step may succeed without
// restarting the login.
func Retryable(err error) bool {
	return errors.Is(err, ErrEpochUnavailable) || errors.Is(err, ErrSaltService)
}

// UserMessage is a short explanation suitable for showing to the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEpochUnavailable):
		return "Could not reach the network. Try again."
	case errors.Is(err, ErrSessionLost), errors.Is(err, ErrStaleProof):
		return "Your sign-in expired. Please sign in again."
	case errors.Is(err, ErrNoToken), errors.Is(err, ErrInvalidToken):
		return "The sign-in response was not understood. Please sign in again."
	case errors.Is(err, ErrSaltService):
		return "The account service is unavailable. Try again."
	case errors.Is(err, ErrProofService):
		return "Your sign-in could not be verified. Please sign in again."
	case errors.Is(err, ErrEphemeralKeyExpired):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, ErrNotAuthenticated):
		return "You are not signed in."
	case errors.Is(err, ErrSubmissionRejected):
		return "The network rejected the transaction."
	default:
		return "Something went wrong. Please sign in again."
	}
}
