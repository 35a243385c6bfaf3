// Package reference generates short, human-shareable booking references.
package reference

import (
	"crypto/rand"
	"fmt"
	"time"
)

// alphabet omits 0/O, 1/I and similar lookalikes so references survive
// being read over the phone or copied from a ticket.
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultLength is the random suffix length. 6 characters over a 32-symbol
// alphabet gives ~1e9 combinations per day, enough that collisions are rare
// and handled by caller-side retry rather than failing the reservation.
const DefaultLength = 6

// New returns a reference of the form SB-YYYYMMDD-XXXXXX.
// Uniqueness is not guaranteed; callers retry on a collision.
func New() (string, error) {
	suffix, err := randomSuffix(DefaultLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SB-%s-%s", time.Now().Format("20060102"), suffix), nil
}

func randomSuffix(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}
