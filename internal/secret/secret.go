// Package secret provides the opaque secret collaborator consumed by the
// build pipeline.
//
// Values have read-once, zero-on-close semantics: the provision phase reads
// the temporary build-account password exactly once to hand it to the guest,
// and the plaintext is never retained by this process afterwards.
package secret

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

// ErrConsumed is returned when a value is read a second time.
var ErrConsumed = errors.New("secret already consumed")

// Source produces opaque secret values.
type Source interface {
	// New returns a fresh secret value.
	New() (*Value, error)
}

// Value is a read-once secret. Read returns the plaintext exactly once;
// Destroy zeroes the backing buffer.
type Value struct {
	mu       sync.Mutex
	data     []byte
	consumed bool
}

// Read returns the plaintext and marks the value consumed. A second call
// returns ErrConsumed.
func (v *Value) Read() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.consumed {
		return nil, ErrConsumed
	}
	v.consumed = true

	out := make([]byte, len(v.data))
	copy(out, v.data)
	v.zeroLocked()
	return out, nil
}

// Destroy zeroes the backing buffer without reading it. Safe to call more
// than once and after Read.
func (v *Value) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.consumed = true
	v.zeroLocked()
}

func (v *Value) zeroLocked() {
	for i := range v.data {
		v.data[i] = 0
	}
	v.data = nil
}

// alphabet covers the character classes Windows password policy expects.
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789!#%+-="

// RandomSource generates random secrets of a fixed length.
type RandomSource struct {
	// Length is the generated secret length. Zero means 24.
	Length int
}

// New implements Source.
func (s *RandomSource) New() (*Value, error) {
	length := s.Length
	if length <= 0 {
		length = 24
	}

	data := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range data {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return nil, fmt.Errorf("failed to generate secret: %w", err)
		}
		data[i] = alphabet[n.Int64()]
	}
	return &Value{data: data}, nil
}
