// Package login drives a zkLogin attempt from key generation to an
// authenticated session. The provider redirect ends the process, so the
// flow is split into BeginLogin and CompleteLogin joined only by the
// session store.
package login

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/yawdotio/totalbeginers-Suitters/address"
	"github.com/yawdotio/totalbeginers-Suitters/ephemeral"
	"github.com/yawdotio/totalbeginers-Suitters/ledger"
	"github.com/yawdotio/totalbeginers-Suitters/oauth"
	"github.com/yawdotio/totalbeginers-Suitters/prover"
	"github.com/yawdotio/totalbeginers-Suitters/session"
	"github.com/yawdotio/totalbeginers-Suitters/signature"
)

type SaltSource interface {
	GetSalt(ctx context.Context, token string) (string, error)
}

type Prover interface {
	GetProof(ctx context.Context, req prover.Request) (prover.Artifact, error)
}

type Ledger interface {
	ephemeral.EpochSource
	ExecuteTransactionBlock(ctx context.Context, txBytes []byte, signatures []string) (*ledger.ExecuteResult, error)
}

type Deps struct {
	Store     *session.Store
	Ledger    Ledger
	Salts     SaltSource
	Prover    Prover
	Navigator oauth.Navigator
	OAuth     oauth.Config
	Logger    zerolog.Logger
}

type Flow struct {
	store  *session.Store
	ledger Ledger
	salts  SaltSource
	prover Prover
	nav    oauth.Navigator
	oauth  oauth.Config
	log    zerolog.Logger
	now    func() time.Time
}

func NewFlow(d Deps) *Flow {
	return &Flow{
		store:  d.Store,
		ledger: d.Ledger,
		salts:  d.Salts,
		prover: d.Prover,
		nav:    d.Navigator,
		oauth:  d.OAuth,
		log:    d.Logger,
		now:    time.Now,
	}
}

// BeginLogin replaces any stored session with fresh pending key material
// and sends the user to the provider.
func (f *Flow) BeginLogin(ctx context.Context) (*session.Session, error) {
	m, err := ephemeral.Begin(ctx, f.ledger)
	if err != nil {
		return nil, err
	}
	exported, err := m.KeyPair.Export()
	if err != nil {
		return nil, err
	}

	started := f.now().UTC()
	pending := &session.Session{
		EphemeralKeyPair: exported,
		Randomness:       m.Randomness,
		Nonce:            m.Nonce,
		MaxEpoch:         m.MaxEpoch,
		AttemptID:        uuid.NewString(),
		StartedAt:        &started,
	}
	if err := f.store.Replace(ctx, pending); err != nil {
		return nil, errors.Wrap(err, "persist pending login")
	}

	f.log.Info().Str("attempt", pending.AttemptID).Uint64("maxEpoch", pending.MaxEpoch).Msg("login started")

	if err := oauth.BeginRedirect(ctx, f.nav, f.oauth, pending.Nonce); err != nil {
		f.abort(ctx, pending.Nonce)
		return nil, errors.Wrap(err, "redirect to provider")
	}
	return pending, nil
}

// CompleteLogin picks the identity token out of the landing location and
// finishes the pending attempt with it.
func (f *Flow) CompleteLogin(ctx context.Context, loc oauth.Location) (*session.Session, error) {
	token, ok := oauth.ExtractToken(loc)
	if !ok {
		return nil, ErrNoToken
	}
	return f.Complete(ctx, token)
}

// Complete moves a pending session through salt, proof and address
// derivation. Any failure clears the attempt. A result that arrives after
// a newer attempt replaced this one is dropped with ErrStaleProof and the
// newer session is left alone.
func (f *Flow) Complete(ctx context.Context, token string) (*session.Session, error) {
	pending, err := f.store.Load(ctx)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return nil, err
	}
	if pending.State() != session.StatePendingRedirect {
		if pending != nil {
			f.abort(ctx, pending.Nonce)
		}
		return nil, ErrSessionLost
	}
	nonce := pending.Nonce
	logger := f.log.With().Str("attempt", pending.AttemptID).Logger()

	claims, err := oauth.DecodeClaims(token)
	if err != nil {
		return nil, f.fail(ctx, nonce, err)
	}
	if claims.Nonce != nonce {
		logger.Warn().Msg("token was issued for another attempt")
		return nil, errors.Wrap(ErrStaleProof, "token nonce does not match pending login")
	}

	err = f.store.SaveIf(ctx, &session.Session{JWT: token, Sub: claims.Sub, Aud: claims.Aud}, current(nonce))
	if err != nil {
		return nil, err
	}

	kp, err := ephemeral.ImportKeyPair(pending.EphemeralKeyPair)
	if err != nil {
		return nil, f.fail(ctx, nonce, err)
	}

	saltValue, err := f.salts.GetSalt(ctx, token)
	if err != nil {
		return nil, f.fail(ctx, nonce, err)
	}

	proof, err := f.prover.GetProof(ctx, prover.Request{
		JWT:                        token,
		Salt:                       saltValue,
		MaxEpoch:                   pending.MaxEpoch,
		Randomness:                 pending.Randomness,
		ExtendedEphemeralPublicKey: kp.PublicKey(),
	})
	if err != nil {
		return nil, f.fail(ctx, nonce, err)
	}

	derived, err := address.Derive(saltValue, claims.Sub, claims.Aud)
	if err != nil {
		logger.Error().Err(err).Msg("address derivation failed")
		return nil, f.fail(ctx, nonce, err)
	}

	err = f.store.SaveIf(ctx, &session.Session{
		Salt:        saltValue,
		ZkProof:     string(proof),
		AddressSeed: derived.SeedString(),
		UserAddress: derived.Address,
	}, current(nonce))
	if err != nil {
		if errors.Is(err, ErrStaleProof) {
			logger.Warn().Msg("discarding proof for superseded attempt")
		}
		return nil, err
	}

	logger.Info().Str("address", derived.Address).Msg("login complete")
	return f.store.Load(ctx)
}

// Restore returns the stored session without touching the network. A nil
// session means logged out. A stored token that no longer decodes clears
// the session.
func (f *Flow) Restore(ctx context.Context) (*session.Session, error) {
	sess, err := f.store.Load(ctx)
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sess.JWT == "" {
		return sess, nil
	}
	if _, err := oauth.DecodeClaims(sess.JWT); err != nil {
		f.log.Warn().Err(err).Msg("clearing session with undecodable token")
		_, err = f.store.ClearIf(ctx, func(cur *session.Session) bool {
			return cur.JWT == sess.JWT
		})
		return nil, err
	}
	return sess, nil
}

func (f *Flow) State(ctx context.Context) (session.State, error) {
	sess, err := f.Restore(ctx)
	if err != nil {
		return session.StateLoggedOut, err
	}
	return sess.State(), nil
}

func (f *Flow) Logout(ctx context.Context) error {
	return f.store.Clear(ctx)
}

// SignTransaction returns the zkLogin signature for txBytes. It refuses
// once the ledger has moved past the session's max epoch.
func (f *Flow) SignTransaction(ctx context.Context, txBytes []byte) (string, error) {
	sess, err := f.Restore(ctx)
	if err != nil {
		return "", err
	}
	if !sess.IsAuthenticated() {
		return "", ErrNotAuthenticated
	}

	epoch, err := f.ledger.CurrentEpoch(ctx)
	if err != nil {
		return "", errors.Wrap(ErrEpochUnavailable, err.Error())
	}
	if epoch > sess.MaxEpoch {
		return "", errors.Wrapf(ErrEphemeralKeyExpired, "epoch %d is past %d", epoch, sess.MaxEpoch)
	}

	kp, err := ephemeral.ImportKeyPair(sess.EphemeralKeyPair)
	if err != nil {
		return "", err
	}
	return signature.Assemble(json.RawMessage(sess.ZkProof), sess.MaxEpoch, sess.AddressSeed, kp.SignTransaction(txBytes))
}

// Submit signs txBytes and executes them on the ledger.
func (f *Flow) Submit(ctx context.Context, txBytes []byte) (*ledger.ExecuteResult, error) {
	sig, err := f.SignTransaction(ctx, txBytes)
	if err != nil {
		return nil, err
	}
	res, err := f.ledger.ExecuteTransactionBlock(ctx, txBytes, []string{sig})
	if err != nil {
		return nil, err
	}
	f.log.Info().Str("digest", res.Digest).Msg("transaction submitted")
	return res, nil
}

func current(nonce string) func(*session.Session) error {
	return func(s *session.Session) error {
		if s == nil || s.Nonce != nonce {
			return ErrStaleProof
		}
		return nil
	}
}

func (f *Flow) fail(ctx context.Context, nonce string, cause error) error {
	f.log.Warn().Err(cause).Msg("login aborted")
	f.abort(ctx, nonce)
	return cause
}

// abort clears the attempt identified by nonce, leaving any newer one.
func (f *Flow) abort(ctx context.Context, nonce string) {
	_, err := f.store.ClearIf(ctx, func(s *session.Session) bool { return s.Nonce == nonce })
	if err != nil {
		f.log.Error().Err(err).Msg("clear aborted session")
	}
}
