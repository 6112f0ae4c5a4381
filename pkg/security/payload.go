package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/cuemby/dwn/pkg/types"
)

// AlgorithmAESGCM is the only Encryption.Algorithm this package produces or
// consumes today (spec.md §4.10's EncryptionMetadata wire shape).
const AlgorithmAESGCM = "A256GCM"

// DeriveKey derives a 32-byte AES-256 key from a passphrase via SHA-256.
// The DWN never calls this itself (key derivation is an external
// collaborator, spec.md §1); within this module only this package's tests
// call it.
func DeriveKey(passphrase string) []byte {
	hash := sha256.Sum256([]byte(passphrase))
	return hash[:]
}

// EncryptPayload encrypts plaintext with AES-256-GCM under key, returning
// the ciphertext (ready to attach as a Message's Data) and the
// EncryptionMetadata describing how to reverse it.
func EncryptPayload(key []byte, keyId string, plaintext []byte) ([]byte, *types.EncryptionMetadata, error) {
	if len(key) != 32 {
		return nil, nil, fmt.Errorf("security: encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("security: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("security: new gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("security: generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	meta := &types.EncryptionMetadata{
		Algorithm:            AlgorithmAESGCM,
		InitializationVector: base64.StdEncoding.EncodeToString(nonce),
		KeyId:                keyId,
	}
	return ciphertext, meta, nil
}

// DecryptPayload reverses EncryptPayload given the matching key and the
// EncryptionMetadata a Records/Read returned alongside the ciphertext.
func DecryptPayload(key []byte, meta *types.EncryptionMetadata, ciphertext []byte) ([]byte, error) {
	if meta == nil {
		return nil, fmt.Errorf("security: no encryption metadata")
	}
	if meta.Algorithm != AlgorithmAESGCM {
		return nil, fmt.Errorf("security: unsupported algorithm %q", meta.Algorithm)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("security: decryption key must be 32 bytes, got %d", len(key))
	}
	nonce, err := base64.StdEncoding.DecodeString(meta.InitializationVector)
	if err != nil {
		return nil, fmt.Errorf("security: decode iv: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: new gcm: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("security: decrypt: %w", err)
	}
	return plaintext, nil
}
