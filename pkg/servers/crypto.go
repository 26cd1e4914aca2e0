package servers

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// encryptSecret seals a secret with GCM when a key is configured; else stores
// the plaintext bytes (dev only). Format: 0x01 | nonce | ciphertext.
func encryptSecret(secret string, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return []byte(secret), nil
	}
	h := sha256.Sum256(key)
	block, err := aes.NewCipher(h[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := gcm.Seal(nil, nonce, []byte(secret), nil)
	out := make([]byte, 1+len(nonce)+len(ct))
	out[0] = 0x01
	copy(out[1:1+len(nonce)], nonce)
	copy(out[1+len(nonce):], ct)
	return out, nil
}

// decryptSecret reverses encryptSecret (versioned: 0x01 | nonce | ciphertext[GCM]).
func decryptSecret(blob []byte, key []byte) (string, error) {
	if len(key) == 0 {
		return string(blob), nil
	}
	if len(blob) < 2 { // version + minimal nonce
		return "", fmt.Errorf("invalid blob")
	}
	if blob[0] != 0x01 { // only support version 1
		return "", fmt.Errorf("unsupported version")
	}
	h := sha256.Sum256(key)
	block, err := aes.NewCipher(h[:])
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(blob) < 1+gcm.NonceSize() {
		return "", fmt.Errorf("short nonce")
	}
	nonce := blob[1 : 1+gcm.NonceSize()]
	ct := blob[1+gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
