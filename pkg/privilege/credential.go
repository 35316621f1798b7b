package privilege

import (
	"errors"
	"sync"
)

var (
	// ErrCredentialConsumed is returned once the secret has been handed to
	// its single consumer or wiped.
	ErrCredentialConsumed = errors.New("privilege: credential already consumed")

	// ErrEmptyCredential is returned for a credential with no bytes.
	ErrEmptyCredential = errors.New("privilege: empty credential")
)

const redacted = "[REDACTED]"

// Credential is a single-use elevation secret. It may be revealed any number
// of times to a verifier while it is live, consumed exactly once, and is
// wiped from memory on consumption or Wipe. It never formats its value.
type Credential struct {
	mu       sync.Mutex
	secret   []byte
	consumed bool
}

// NewCredential copies b into a new Credential. The caller should wipe b.
func NewCredential(b []byte) *Credential {
	s := make([]byte, len(b))
	copy(s, b)
	return &Credential{secret: s}
}

// Reveal passes the secret to fn without consuming it. The slice must not be
// retained by fn.
func (c *Credential) Reveal(fn func(secret []byte) error) error {
	if c == nil {
		return ErrEmptyCredential
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consumed {
		return ErrCredentialConsumed
	}
	if len(c.secret) == 0 {
		return ErrEmptyCredential
	}
	return fn(c.secret)
}

// Consume returns the secret and marks the credential consumed. The returned
// slice belongs to the caller, who should zero it after use.
func (c *Credential) Consume() ([]byte, error) {
	if c == nil {
		return nil, ErrEmptyCredential
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consumed {
		return nil, ErrCredentialConsumed
	}
	if len(c.secret) == 0 {
		return nil, ErrEmptyCredential
	}
	out := make([]byte, len(c.secret))
	copy(out, c.secret)
	zero(c.secret)
	c.secret = nil
	c.consumed = true
	return out, nil
}

// Consumed reports whether the credential can no longer be used.
func (c *Credential) Consumed() bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consumed
}

// Wipe zeroes the secret and marks the credential consumed. Safe to call
// repeatedly and on nil.
func (c *Credential) Wipe() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	zero(c.secret)
	c.secret = nil
	c.consumed = true
}

func (c *Credential) String() string   { return redacted }
func (c *Credential) GoString() string { return redacted }

// MarshalText keeps the secret out of JSON/YAML/slog output.
func (c *Credential) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Zero overwrites b with zero bytes.
func Zero(b []byte) { zero(b) }

func zero(b []byte) { clear(b) }
