package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nazarious-ucu/newsletter-signup-api/internal/services/token"
)

func TestIssue(t *testing.T) {
	svc := token.NewService()

	tok, issuedAt, err := svc.Issue()
	require.NoError(t, err)

	assert.Len(t, tok, 32)
	assert.False(t, svc.IsExpired(issuedAt, issuedAt))

	other, _, err := svc.Issue()
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)
}

func TestIssueUniqueness(t *testing.T) {
	svc := token.NewService()
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		tok, _, err := svc.Issue()
		require.NoError(t, err)
		assert.False(t, seen[tok], "token issued twice: %s", tok)
		seen[tok] = true
	}
}

func TestIsExpired(t *testing.T) {
	issuedAt := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	svc := token.NewService()

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"at issuance", issuedAt, false},
		{"one second in", issuedAt.Add(time.Second), false},
		{"just before threshold", issuedAt.Add(time.Hour - time.Nanosecond), false},
		{"exactly at threshold", issuedAt.Add(time.Hour), true},
		{"after threshold", issuedAt.Add(2 * time.Hour), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, svc.IsExpired(issuedAt, tc.now))
		})
	}
}

func TestIsExpiredMonotonic(t *testing.T) {
	issuedAt := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	svc := token.NewService()

	expiredSeen := false
	for offset := time.Duration(0); offset <= 2*time.Hour; offset += time.Minute {
		expired := svc.IsExpired(issuedAt, issuedAt.Add(offset))
		if expiredSeen {
			assert.True(t, expired, "token flipped back to valid at offset %s", offset)
		}
		if expired {
			expiredSeen = true
		}
	}
	assert.True(t, expiredSeen)
}
