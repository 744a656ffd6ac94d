// Package signature assembles the zkLogin signature the ledger accepts in
// place of a regular key signature. It is the only code that looks inside
// a proof.
package signature

import (
	"encoding/base64"
	"encoding/json"

	"github.com/fardream/go-bcs/bcs"
	"github.com/pkg/errors"
)

// FlagZkLogin is the signature scheme byte for zkLogin.
const FlagZkLogin = 0x05

var ErrMalformedProof = errors.New("malformed proof")

// Proof is the part of the proving service response the signature embeds.
type Proof struct {
	ProofPoints struct {
		A []string   `json:"a"`
		B [][]string `json:"b"`
		C []string   `json:"c"`
	} `json:"proofPoints"`
	IssBase64Details struct {
		Value     string `json:"value"`
		IndexMod4 uint8  `json:"indexMod4"`
	} `json:"issBase64Details"`
	HeaderBase64 string `json:"headerBase64"`
}

// zkLoginSignature is the BCS layout the ledger expects after the flag byte.
type zkLoginSignature struct {
	Inputs        zkLoginInputs
	MaxEpoch      uint64
	UserSignature []byte
}

type zkLoginInputs struct {
	ProofPoints      proofPoints
	IssBase64Details claim
	HeaderBase64     string
	AddressSeed      string
}

type proofPoints struct {
	A []string
	B [][]string
	C []string
}

type claim struct {
	Value     string
	IndexMod4 uint8
}

// ParseProof decodes and checks the fields a signature needs.
func ParseProof(raw json.RawMessage) (*Proof, error) {
	var p Proof
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errors.Wrap(ErrMalformedProof, err.Error())
	}
	switch {
	case len(p.ProofPoints.A) == 0, len(p.ProofPoints.B) == 0, len(p.ProofPoints.C) == 0:
		return nil, errors.Wrap(ErrMalformedProof, "missing proof points")
	case p.IssBase64Details.Value == "":
		return nil, errors.Wrap(ErrMalformedProof, "missing issBase64Details")
	case p.HeaderBase64 == "":
		return nil, errors.Wrap(ErrMalformedProof, "missing headerBase64")
	}
	return &p, nil
}

// Assemble combines a proof, the session's max epoch and address seed, and
// a serialized ephemeral signature into a base64 zkLogin signature.
func Assemble(proof json.RawMessage, maxEpoch uint64, addressSeed, userSignature string) (string, error) {
	p, err := ParseProof(proof)
	if err != nil {
		return "", err
	}
	if addressSeed == "" {
		return "", errors.New("address seed is required")
	}
	sig, err := base64.StdEncoding.DecodeString(userSignature)
	if err != nil {
		return "", errors.Wrap(err, "decode user signature")
	}

	payload, err := bcs.Marshal(zkLoginSignature{
		Inputs: zkLoginInputs{
			ProofPoints: proofPoints{
				A: p.ProofPoints.A,
				B: p.ProofPoints.B,
				C: p.ProofPoints.C,
			},
			IssBase64Details: claim{
				Value:     p.IssBase64Details.Value,
				IndexMod4: p.IssBase64Details.IndexMod4,
			},
			HeaderBase64: p.HeaderBase64,
			AddressSeed:  addressSeed,
		},
		MaxEpoch:      maxEpoch,
		UserSignature: sig,
	})
	if err != nil {
		return "", errors.Wrap(err, "encode zkLogin signature")
	}

	return base64.StdEncoding.EncodeToString(append([]byte{FlagZkLogin}, payload...)), nil
}
