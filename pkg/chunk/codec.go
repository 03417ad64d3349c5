package chunk

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Codec encrypts and decrypts individual chunks with AES-256-GCM.
//
// Each Encrypt call generates a fresh random nonce and prepends it to the
// ciphertext, so the envelope is self-contained: nonce || ciphertext || tag.
// A fixed IV across chunks would let an observer correlate identical
// plaintext chunks, so the nonce is never reused or configurable.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec creates a Codec from a 32-byte AES-256 key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt seals the chunk payload and returns the envelope.
func (c *Codec) Encrypt(chk *Chunk) ([]byte, error) {
	if chk == nil {
		return nil, fmt.Errorf("chunk is nil")
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	// Seal appends to nonce, producing nonce || ciphertext || tag.
	return c.aead.Seal(nonce, nonce, chk.Data, nil), nil
}

// Decrypt opens an envelope produced by Encrypt and returns the chunk with
// the given index. Tampered ciphertext, a truncated envelope, or a wrong key
// all surface as ErrIntegrity.
func (c *Codec) Decrypt(envelope []byte, index int) (*Chunk, error) {
	ns := c.aead.NonceSize()
	if len(envelope) < ns {
		return nil, fmt.Errorf("envelope too short (%d bytes): %w", len(envelope), ErrIntegrity)
	}
	nonce, ciphertext := envelope[:ns], envelope[ns:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open chunk %d: %w", index, ErrIntegrity)
	}
	return &Chunk{Index: index, Data: plaintext}, nil
}

// Overhead is the number of bytes Encrypt adds to a chunk payload.
func (c *Codec) Overhead() int {
	return c.aead.NonceSize() + c.aead.Overhead()
}

// DeriveKey produces a 32-byte AES key from a passphrase and salt using
// argon2id. Parameters follow the library's recommended interactive profile.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

// ParseKey decodes a 64-character hex key string into key bytes.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode hex key: %w", err)
	}
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	return key, nil
}
