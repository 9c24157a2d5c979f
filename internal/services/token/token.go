package token

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

const (
	bytesNum = 16

	// DefaultTTL is how long a validation token stays usable after issuance.
	DefaultTTL = time.Hour
)

type Service struct {
	ttl time.Duration
	now func() time.Time
}

func NewService() *Service {
	return &Service{ttl: DefaultTTL, now: time.Now}
}

// NewServiceWithClock is used by tests that need a deterministic clock.
func NewServiceWithClock(ttl time.Duration, now func() time.Time) *Service {
	return &Service{ttl: ttl, now: now}
}

// Issue generates a fresh validation token and its issuance timestamp.
func (s *Service) Issue() (string, time.Time, error) {
	tokenBytes := make([]byte, bytesNum)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", time.Time{}, err
	}
	return hex.EncodeToString(tokenBytes), s.now().UTC(), nil
}

// IsExpired reports whether a token issued at issuedAt is past its validity
// window at the moment now. The threshold itself counts as expired.
func (s *Service) IsExpired(issuedAt, now time.Time) bool {
	return now.Sub(issuedAt) >= s.ttl
}
