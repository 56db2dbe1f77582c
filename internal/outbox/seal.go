package outbox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4
)

// sealMagic prefixes sealed blobs so they are never mistaken for plain JSON.
var sealMagic = []byte("SS1")

var (
	// ErrSealed is returned when a sealed entry is read without a passphrase.
	ErrSealed = errors.New("outbox entry is sealed")
	// ErrOpen is returned when a sealed entry cannot be decrypted.
	ErrOpen = errors.New("open sealed outbox entry")
)

// Sealer encrypts request inits at rest with an Argon2id-derived AES-256-GCM key.
// Layout: [magic][16-byte salt][12-byte nonce][ciphertext].
type Sealer struct {
	passphrase string
	salt       []byte
	key        []byte

	mu   sync.Mutex
	keys map[string][]byte
}

// NewSealer derives a key for passphrase under a fresh salt. Blobs sealed by
// other instances carry their own salt and are opened with a derived key
// that is then remembered.
func NewSealer(passphrase string) (*Sealer, error) {
	salt, err := generateSalt()
	if err != nil {
		return nil, err
	}
	key := deriveKey(passphrase, salt)
	return &Sealer{
		passphrase: passphrase,
		salt:       salt,
		key:        key,
		keys:       map[string][]byte{string(salt): key},
	}, nil
}

func generateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

func (s *Sealer) keyFor(salt []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[string(salt)]; ok {
		return k
	}
	k := deriveKey(s.passphrase, salt)
	s.keys[string(salt)] = k
	return k
}

// Seal encrypts plaintext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, len(sealMagic)+saltSize+nonceSize+len(ciphertext))
	out = append(out, sealMagic...)
	out = append(out, s.salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// Open decrypts a blob produced by Seal.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	if !isSealed(data) {
		return nil, fmt.Errorf("%w: not a sealed blob", ErrOpen)
	}
	data = data[len(sealMagic):]
	if len(data) < saltSize+nonceSize {
		return nil, fmt.Errorf("%w: blob too small", ErrOpen)
	}
	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+nonceSize]
	ciphertext := data[saltSize+nonceSize:]

	gcm, err := newGCM(s.keyFor(salt))
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

func isSealed(data []byte) bool {
	return bytes.HasPrefix(data, sealMagic)
}
