package rating

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/mcoot/fairmatch/internal/model"
)

// MaxRating is the largest rating that can be sealed
const MaxRating = 1<<31 - 1

// keyInfo binds derived keys to this use of the secret
const keyInfo = "fairmatch rating v1"

// payloadSize is the plaintext size of a sealed rating
const payloadSize = 4

var (
	ErrEmptySecret       = errors.New("rating secret must not be empty")
	ErrRatingOutOfRange  = fmt.Errorf("rating must be between 0 and %d", MaxRating)
	errMalformedEnvelope = errors.New("sealed rating has the wrong length")
)

// Sealer issues and opens encrypted ratings.
//
// A sealed rating is nonce || XChaCha20-Poly1305(rating) with the owner's
// player id as additional data, so a value issued to one player fails to open
// for any other.
type Sealer struct {
	key []byte
}

// NewSealer derives the sealing key from secret with HKDF-SHA256
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, err
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts value for owner
func (s *Sealer) Seal(owner model.PlayerID, value int) (model.EncryptedRating, error) {
	if value < 0 || value > MaxRating {
		return nil, ErrRatingOutOfRange
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+payloadSize+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	var payload [payloadSize]byte
	binary.BigEndian.PutUint32(payload[:], uint32(value))

	return aead.Seal(nonce, nonce, payload[:], []byte(owner)), nil
}

// open decrypts a sealed rating. The result must never leave this package.
func (s *Sealer) open(owner model.PlayerID, sealed model.EncryptedRating) (int64, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return 0, err
	}

	if len(sealed) != aead.NonceSize()+payloadSize+aead.Overhead() {
		return 0, errMalformedEnvelope
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	payload, err := aead.Open(nil, nonce, ciphertext, []byte(owner))
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint32(payload)), nil
}

// Verify reports whether sealed opens for owner, without revealing the value
func (s *Sealer) Verify(owner model.PlayerID, sealed model.EncryptedRating) error {
	if _, err := s.open(owner, sealed); err != nil {
		return &DataError{Owner: owner, Err: err}
	}
	return nil
}
