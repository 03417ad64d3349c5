package chunk

import "errors"

// Sentinel errors for codec operations.
var (
	// ErrIntegrity indicates decryption or envelope validation failed.
	// Callers must treat the payload as unusable; the codec never returns
	// partially decrypted bytes.
	ErrIntegrity = errors.New("chunk integrity check failed")

	// ErrInvalidChunkSize indicates a non-positive chunk size.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")

	// ErrInvalidKey indicates the key is not a valid AES-256 key.
	ErrInvalidKey = errors.New("encryption key must be 32 bytes")
)

// IsIntegrity returns true if the error indicates a failed integrity check.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrIntegrity)
}
