package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/dwn/pkg/didsig"
)

// keysFile is the on-disk shape --keys points at: a DID-to-public-keys map
// standing in for the out-of-scope DID resolution service, the same role
// didsig.StaticResolver plays in tests (spec.md §1).
type keysFile struct {
	Dids map[string][]keyEntry `yaml:"dids"`
}

type keyEntry struct {
	Id        string `yaml:"id"`
	Algorithm string `yaml:"algorithm"`
	PublicKey string `yaml:"publicKey"`
}

// loadResolver parses path into a didsig.StaticResolver. Only EdDSA
// (ed25519) keys are supported today — the algorithm is checked per entry
// so a malformed file fails fast rather than at first verification.
func loadResolver(path string) (didsig.StaticResolver, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keys file: %w", err)
	}
	var kf keysFile
	if err := yaml.Unmarshal(raw, &kf); err != nil {
		return nil, fmt.Errorf("parse keys file: %w", err)
	}

	resolver := didsig.StaticResolver{}
	for did, entries := range kf.Dids {
		keys := make([]didsig.PublicKey, 0, len(entries))
		for _, e := range entries {
			if e.Algorithm != "EdDSA" {
				return nil, fmt.Errorf("keys file: did %s key %s: unsupported algorithm %q", did, e.Id, e.Algorithm)
			}
			raw, err := base64.StdEncoding.DecodeString(e.PublicKey)
			if err != nil {
				return nil, fmt.Errorf("keys file: did %s key %s: decode publicKey: %w", did, e.Id, err)
			}
			if len(raw) != ed25519.PublicKeySize {
				return nil, fmt.Errorf("keys file: did %s key %s: public key must be %d bytes", did, e.Id, ed25519.PublicKeySize)
			}
			keys = append(keys, didsig.PublicKey{Id: e.Id, Algorithm: e.Algorithm, Key: ed25519.PublicKey(raw)})
		}
		resolver[did] = keys
	}
	return resolver, nil
}
