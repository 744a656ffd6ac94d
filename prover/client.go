// Package prover requests zero-knowledge proofs from a remote proving
// service. The returned artifact is opaque to everything except the
// signature assembler.
package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/yawdotio/totalbeginers-Suitters/types"
)

// KeyClaimName is the token claim the proof binds the address to.
const KeyClaimName = "sub"

var ErrProofService = errors.New("proof service error")

// ProofServiceError carries the service's status and body verbatim.
type ProofServiceError struct {
	StatusCode int
	Body       string
}

func (e *ProofServiceError) Error() string {
	return fmt.Sprintf("proof service returned %d: %s", e.StatusCode, e.Body)
}

func (e *ProofServiceError) Unwrap() error {
	return ErrProofService
}

// Request is everything the proving service needs for one login.
type Request struct {
	JWT                        string
	Salt                       string
	MaxEpoch                   uint64
	Randomness                 string
	ExtendedEphemeralPublicKey []byte
}

// Artifact is the proof exactly as the service returned it.
type Artifact = json.RawMessage

type Client struct {
	endpoint string
	client   *http.Client
	log      zerolog.Logger
}

func NewClient(endpoint string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

func payload(r Request) types.ProofRequest {
	key := make([]int, len(r.ExtendedEphemeralPublicKey))
	for i, b := range r.ExtendedEphemeralPublicKey {
		key[i] = int(b)
	}
	return types.ProofRequest{
		JWT:                        r.JWT,
		ExtendedEphemeralPublicKey: key,
		MaxEpoch:                   strconv.FormatUint(r.MaxEpoch, 10),
		JWTRandomness:              r.Randomness,
		Salt:                       r.Salt,
		KeyClaimName:               KeyClaimName,
	}
}

// GetProof posts the request and returns the raw proof. Non-2xx answers
// come back as *ProofServiceError; transport failures wrap ErrProofService.
func (c *Client) GetProof(ctx context.Context, r Request) (Artifact, error) {
	body, err := json.Marshal(payload(r))
	if err != nil {
		return nil, errors.Wrap(err, "marshal proof request")
	}

	c.log.Debug().
		Uint64("maxEpoch", r.MaxEpoch).
		Int("keyLen", len(r.ExtendedEphemeralPublicKey)).
		Msg("requesting proof")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build proof request")
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(ErrProofService, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(ErrProofService, err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn().Int("status", resp.StatusCode).Msg("proof request rejected")
		return nil, &ProofServiceError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if !json.Valid(raw) {
		return nil, errors.Wrap(ErrProofService, "response is not JSON")
	}

	c.log.Info().Dur("elapsed", time.Since(start)).Msg("proof received")
	return Artifact(raw), nil
}
