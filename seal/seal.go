// Package seal provides authenticated encryption of RPC bodies with key
// rotation.
//
// A sealed value has the form
//
//	keyID "." base64url(nonce || AEAD.Seal(nil, nonce, plaintext, aad))
//
// Keys holds every key accepted for opening; KeyID selects the key used for
// sealing. The nonce is random per value. The default AEAD is
// XChaCha20-Poly1305.
package seal

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrSealFormat  = errors.New("seal: invalid sealed value format")
	ErrSealInvalid = errors.New("seal: sealed value does not authenticate")
	ErrSealConfig  = errors.New("seal: invalid configuration")
)

// MaxSealedLen bounds the length of a sealed value. It matches the body
// limits of the transport and endpoint packages.
const MaxSealedLen = 32 << 20

// DefaultKeySize is the key size of the default AEAD.
const DefaultKeySize = chacha20poly1305.KeySize

// Codec seals and opens byte slices.
type Codec struct {
	KeyID string
	Keys  map[string][]byte

	// NewAEAD constructs the AEAD for a key.
	// Defaults to chacha20poly1305.NewX.
	NewAEAD func(key []byte) (cipher.AEAD, error)
}

// Option configures a Codec.
type Option func(*Codec)

// WithAEAD configures a custom AEAD factory (e.g. AES-GCM).
func WithAEAD(f func([]byte) (cipher.AEAD, error)) Option {
	return func(c *Codec) {
		c.NewAEAD = f
	}
}

// New creates a Codec sealing with keys[keyID]. Every key is checked against
// the AEAD factory up front.
func New(keyID string, keys map[string][]byte, opts ...Option) (*Codec, error) {
	c := &Codec{
		KeyID:   keyID,
		Keys:    keys,
		NewAEAD: chacha20poly1305.NewX,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.Keys == nil {
		return nil, fmt.Errorf("%w: keys must not be nil", ErrSealConfig)
	}
	if _, ok := c.Keys[c.KeyID]; !ok {
		return nil, fmt.Errorf("%w: keyID %q not found in keys", ErrSealConfig, c.KeyID)
	}
	if c.NewAEAD == nil {
		return nil, fmt.Errorf("%w: nil AEAD factory", ErrSealConfig)
	}
	for id, k := range c.Keys {
		if strings.Contains(id, ".") {
			return nil, fmt.Errorf("%w: key id %q contains '.'", ErrSealConfig, id)
		}
		if _, err := c.NewAEAD(k); err != nil {
			return nil, fmt.Errorf("invalid key %s: %w", id, err)
		}
	}
	return c, nil
}

// Seal encrypts plain. aad must identify what the value is used for; the
// same aad is required to open it.
func (c *Codec) Seal(plain, aad []byte) (string, error) {
	if c == nil || c.NewAEAD == nil {
		return "", ErrSealConfig
	}
	key, ok := c.Keys[c.KeyID]
	if !ok {
		return "", ErrSealConfig
	}
	aead, err := c.NewAEAD(key)
	if err != nil {
		return "", err
	}

	size := aead.NonceSize() + len(plain) + aead.Overhead()
	if len(c.KeyID)+1+base64.RawURLEncoding.EncodedLen(size) > MaxSealedLen {
		return "", fmt.Errorf("%w: sealed value exceeds %d bytes", ErrSealFormat, MaxSealedLen)
	}

	nonce := make([]byte, aead.NonceSize(), size)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, plain, aad)
	return c.KeyID + "." + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open authenticates and decrypts a value produced by Seal with any key in
// Keys.
func (c *Codec) Open(value string, aad []byte) ([]byte, error) {
	if c == nil || c.NewAEAD == nil {
		return nil, ErrSealConfig
	}
	if len(value) == 0 || len(value) > MaxSealedLen {
		return nil, ErrSealFormat
	}
	keyID, encB64, ok := strings.Cut(value, ".")
	if !ok || keyID == "" || encB64 == "" {
		return nil, ErrSealFormat
	}
	key, ok := c.Keys[keyID]
	if !ok {
		return nil, ErrSealInvalid
	}

	sealed, err := base64.RawURLEncoding.DecodeString(encB64)
	if err != nil {
		return nil, ErrSealFormat
	}

	aead, err := c.NewAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrSealFormat
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrSealInvalid
	}
	return plain, nil
}

// ParseKeys parses a key list of the form "id:base64,id:base64". Keys may be
// standard or URL base64, padded or not.
func ParseKeys(s string) (map[string][]byte, error) {
	keys := make(map[string][]byte)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, enc, ok := strings.Cut(entry, ":")
		if !ok || id == "" || enc == "" {
			return nil, fmt.Errorf("%w: malformed key entry %q", ErrSealConfig, entry)
		}
		key, err := decodeKey(enc)
		if err != nil {
			return nil, fmt.Errorf("%w: key %s: %v", ErrSealConfig, id, err)
		}
		keys[id] = key
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no keys", ErrSealConfig)
	}
	return keys, nil
}

func decodeKey(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if strings.ContainsAny(s, "+/") {
		return base64.RawStdEncoding.DecodeString(s)
	}
	return base64.RawURLEncoding.DecodeString(s)
}
