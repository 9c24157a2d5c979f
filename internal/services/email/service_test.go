package email_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/Nazarious-ucu/newsletter-signup-api/internal/services/email"
)

type mockEmailer struct {
	mock.Mock
}

func (m *mockEmailer) Send(to, subject, headers, body string) error {
	args := m.Called(to, subject, headers, body)
	return args.Error(0)
}

func TestEmailService_SendValidation(t *testing.T) {
	cases := []struct {
		name    string
		sendErr error
		wantErr bool
	}{
		{"success", nil, false},
		{"mailer error", errors.New("send failed"), true},
	}

	m := &mockEmailer{}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m.On("Send",
				mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(arg interface{}) bool {
					s, ok := arg.(string)
					if !ok {
						return false
					}
					return strings.Contains(s, "/api/validate/TOKEN123")
				})).Return(tc.sendErr).Once()
			t.Cleanup(func() {
				m.AssertExpectations(t)
			})

			svc := email.NewService(m, "../../../templates", "http://localhost:8080")
			err := svc.SendValidation("user@example.com", "TOKEN123")
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEmailService_SendWelcome(t *testing.T) {
	cases := []struct {
		name        string
		preferences []string
	}{
		{"with preferences", []string{"Gaming", "Music"}},
		{"no preferences", nil},
	}

	m := &mockEmailer{}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m.On("Send",
				mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(arg interface{}) bool {
					s, ok := arg.(string)
					if !ok {
						return false
					}
					for _, p := range tc.preferences {
						if !strings.Contains(s, p) {
							return false
						}
					}
					return true
				})).Return(nil).Once()
			t.Cleanup(func() {
				m.AssertExpectations(t)
			})

			svc := email.NewService(m, "../../../templates", "http://localhost:8080")
			assert.NoError(t, svc.SendWelcome("user@example.com", tc.preferences))
		})
	}
}

func TestEmailService_MissingTemplateDir(t *testing.T) {
	svc := email.NewService(&mockEmailer{}, "./no-such-dir", "http://localhost:8080")

	assert.Error(t, svc.SendValidation("user@example.com", "TOKEN123"))
	assert.Error(t, svc.SendWelcome("user@example.com", nil))
}
