package didsig

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cuemby/dwn/pkg/types"
)

// PublicKey is one key a DID document publishes, as DidResolver.Resolve
// returns it.
type PublicKey struct {
	Id        string
	Algorithm string
	Key       any // e.g. ed25519.PublicKey, *ecdsa.PublicKey
}

// DidResolver resolves a DID to its published public keys (spec.md §6,
// external collaborator).
type DidResolver interface {
	Resolve(ctx context.Context, did string) ([]PublicKey, error)
}

// Verifier checks a JWS signature over payload against a candidate key set
// (spec.md §6's "Signer.verify(jws, keys) -> ok|err").
type Verifier interface {
	Verify(payload []byte, sig types.JwsSignature, keys []PublicKey) error
}

type protectedHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// DefaultVerifier verifies compact, detached-payload JWS signatures: the
// protected header and signature are on the wire, the payload (a
// descriptor CID) is supplied out-of-band by the caller.
type DefaultVerifier struct{}

func (DefaultVerifier) Verify(payload []byte, sig types.JwsSignature, keys []PublicKey) error {
	headerJSON, err := base64.RawURLEncoding.DecodeString(sig.Protected)
	if err != nil {
		return types.NewError(types.KindAuthentication, types.TokenGeneralJwsVerifierInvalidSignature)
	}
	var hdr protectedHeader
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return types.NewError(types.KindAuthentication, types.TokenGeneralJwsVerifierInvalidSignature)
	}
	method := jwt.GetSigningMethod(hdr.Alg)
	if method == nil {
		return types.NewError(types.KindAuthentication, types.TokenGeneralJwsVerifierInvalidSignature)
	}
	sigBytes, err := base64.RawURLEncoding.DecodeString(sig.Signature)
	if err != nil {
		return types.NewError(types.KindAuthentication, types.TokenGeneralJwsVerifierInvalidSignature)
	}
	signingInput := sig.Protected + "." + base64.RawURLEncoding.EncodeToString(payload)

	var lastErr error
	for _, k := range keys {
		if sig.KeyId != "" && k.Id != "" && k.Id != sig.KeyId {
			continue
		}
		if err := method.Verify(signingInput, sigBytes, k.Key); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return types.Wrap(types.KindAuthentication, types.TokenGeneralJwsVerifierInvalidSignature, lastErr)
}

// Sign produces a detached-payload JWS signature over payload — used by
// tests and the `dwn apply` CLI path to build messages, not by the DWN
// itself (which only ever verifies).
func Sign(payload []byte, alg, kid string, key any) (types.JwsSignature, error) {
	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return types.JwsSignature{}, fmt.Errorf("didsig: unknown signing algorithm %q", alg)
	}
	hdrJSON, err := json.Marshal(protectedHeader{Alg: alg, Kid: kid})
	if err != nil {
		return types.JwsSignature{}, err
	}
	protected := base64.RawURLEncoding.EncodeToString(hdrJSON)
	signingInput := protected + "." + base64.RawURLEncoding.EncodeToString(payload)
	sigBytes, err := method.Sign(signingInput, key)
	if err != nil {
		return types.JwsSignature{}, fmt.Errorf("didsig: sign: %w", err)
	}
	return types.JwsSignature{
		Protected: protected,
		Signature: base64.RawURLEncoding.EncodeToString(sigBytes),
		KeyId:     kid,
	}, nil
}

// StaticResolver is a fixed DID-to-keys map, standing in for the out-of-
// scope DID resolution service (spec.md §1).
type StaticResolver map[string][]PublicKey

func (r StaticResolver) Resolve(_ context.Context, did string) ([]PublicKey, error) {
	keys, ok := r[did]
	if !ok {
		return nil, fmt.Errorf("didsig: unknown did %q", did)
	}
	return keys, nil
}
