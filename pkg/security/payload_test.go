package security

import "testing"

func TestEncryptDecryptPayloadRoundTrip(t *testing.T) {
	key := DeriveKey("correct horse battery staple")
	plaintext := []byte("hello dwn")

	ciphertext, meta, err := EncryptPayload(key, "key-1", plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if meta.Algorithm != AlgorithmAESGCM || meta.KeyId != "key-1" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	got, err := DecryptPayload(key, meta, ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("decrypt = %q, want %q", got, plaintext)
	}
}

func TestDecryptPayloadRejectsWrongKey(t *testing.T) {
	key := DeriveKey("passphrase-a")
	wrongKey := DeriveKey("passphrase-b")
	ciphertext, meta, err := EncryptPayload(key, "key-1", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := DecryptPayload(wrongKey, meta, ciphertext); err == nil {
		t.Fatal("decrypt with wrong key succeeded, want error")
	}
}
