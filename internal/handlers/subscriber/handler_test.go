package subscriber_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/Nazarious-ucu/newsletter-signup-api/internal/handlers/subscriber"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/metrics"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/models"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/services/subscribers"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/sitecfg"
)

type mockService struct {
	subRes     subscribers.SubscribeResult
	subErr     error
	valOutcome subscribers.ValidationOutcome
	valErr     error
	prefErr    error
	healthErr  error
}

func (m *mockService) Subscribe(context.Context, models.SignupData) (subscribers.SubscribeResult, error) {
	return m.subRes, m.subErr
}

func (m *mockService) Validate(context.Context, string) (subscribers.ValidationOutcome, error) {
	return m.valOutcome, m.valErr
}

func (m *mockService) UpdatePreferences(context.Context, models.PreferencesData) error {
	return m.prefErr
}

func (m *mockService) Health(context.Context) error {
	return m.healthErr
}

type mockSite struct{}

func (mockSite) Snapshot() sitecfg.Site {
	return sitecfg.Site{
		Title:       "Join",
		ButtonLabel: "Subscribe",
		Categories:  []string{"Gaming", "Music"},
	}
}

func setupRouter(svc *mockService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	h := subscriber.NewHandler(svc, mockSite{}, zerolog.Nop(), metrics.New("test"))
	r.POST("/subscribe", h.Subscribe)
	r.GET("/validate/:token", h.Validate)
	r.POST("/preferences", h.UpdatePreferences)
	r.GET("/health", h.Health)
	r.GET("/site", h.Site)

	return r
}

func TestSubscribeEndpoint(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		mockRes  subscribers.SubscribeResult
		mockErr  error
		wantCode int
		wantBody string
	}{
		{
			name:     "missing email",
			body:     `{"preferences": ["Gaming"]}`,
			wantCode: http.StatusBadRequest,
			wantBody: `{"error":"Please enter a valid email address"}`,
		},
		{
			name:     "invalid email",
			body:     `{"email": "test@a.com"}`,
			mockErr:  subscribers.ErrInvalidEmail,
			wantCode: http.StatusBadRequest,
			wantBody: `{"error":"Please enter a valid email address"}`,
		},
		{
			name:     "unknown preference",
			body:     `{"email": "test@a.com", "preferences": ["Gardening"]}`,
			mockErr:  subscribers.ErrUnknownPreference,
			wantCode: http.StatusBadRequest,
			wantBody: `{"error":"Unknown content preference"}`,
		},
		{
			name:     "service error",
			body:     `{"email": "test@a.com"}`,
			mockErr:  errors.New("fail"),
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"Internal server error"}`,
		},
		{
			name:     "created",
			body:     `{"email": "test@a.com", "preferences": ["Gaming"]}`,
			mockRes:  subscribers.SubscribeResult{Outcome: subscribers.OutcomeCreated, MailSent: true},
			wantCode: http.StatusOK,
			wantBody: `{"message":"Please check your email and click the validation link to complete your subscription"}`,
		},
		{
			name:     "created but mail failed",
			body:     `{"email": "test@a.com"}`,
			mockRes:  subscribers.SubscribeResult{Outcome: subscribers.OutcomeCreated, MailSent: false},
			wantCode: http.StatusOK,
			wantBody: `{"message":"Subscription saved, but the validation email could not be sent. Submit your email again to retry."}`,
		},
		{
			name:     "resent",
			body:     `{"email": "test@a.com"}`,
			mockRes:  subscribers.SubscribeResult{Outcome: subscribers.OutcomeResent, MailSent: true},
			wantCode: http.StatusOK,
			wantBody: `{"message":"A new validation email has been sent to your inbox"}`,
		},
		{
			name:     "already subscribed",
			body:     `{"email": "test@a.com"}`,
			mockRes:  subscribers.SubscribeResult{Outcome: subscribers.OutcomeAlreadySubscribed},
			wantCode: http.StatusOK,
			wantBody: `{"message":"This email is already subscribed and validated"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := setupRouter(&mockService{subRes: tc.mockRes, subErr: tc.mockErr})

			req := httptest.NewRequest(http.MethodPost, "/subscribe", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tc.wantCode, w.Code)
			assert.JSONEq(t, tc.wantBody, w.Body.String())
		})
	}
}

func TestSubscribeEndpointFormEncoded(t *testing.T) {
	router := setupRouter(&mockService{
		subRes: subscribers.SubscribeResult{Outcome: subscribers.OutcomeCreated, MailSent: true},
	})

	form := "email=test%40a.com&preferences=Gaming&preferences=Music"
	req := httptest.NewRequest(http.MethodPost, "/subscribe", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestValidateEndpoint(t *testing.T) {
	cases := []struct {
		name        string
		token       string
		mockOutcome subscribers.ValidationOutcome
		mockErr     error
		wantCode    int
	}{
		{
			name:     "service error",
			token:    "tok1",
			mockErr:  errors.New("fail"),
			wantCode: http.StatusInternalServerError,
		},
		{
			name:        "unknown token",
			token:       "tok2",
			mockOutcome: subscribers.ValidationNotFound,
			wantCode:    http.StatusNotFound,
		},
		{
			name:        "expired token",
			token:       "tok3",
			mockOutcome: subscribers.ValidationExpired,
			wantCode:    http.StatusGone,
		},
		{
			name:        "success",
			token:       "tok4",
			mockOutcome: subscribers.ValidationOK,
			wantCode:    http.StatusOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := setupRouter(&mockService{valOutcome: tc.mockOutcome, valErr: tc.mockErr})

			req := httptest.NewRequest(http.MethodGet, "/validate/"+tc.token, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tc.wantCode, w.Code)
		})
	}
}

func TestPreferencesEndpoint(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		mockErr  error
		wantCode int
	}{
		{
			name:     "missing email",
			body:     `{"preferences": ["Gaming"]}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "not subscribed",
			body:     `{"email": "a@b.com", "preferences": ["Gaming"]}`,
			mockErr:  subscribers.ErrNotSubscribed,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "not validated",
			body:     `{"email": "a@b.com", "preferences": ["Gaming"]}`,
			mockErr:  subscribers.ErrNotValidated,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "unknown preference",
			body:     `{"email": "a@b.com", "preferences": ["Gardening"]}`,
			mockErr:  subscribers.ErrUnknownPreference,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "service error",
			body:     `{"email": "a@b.com", "preferences": ["Gaming"]}`,
			mockErr:  errors.New("fail"),
			wantCode: http.StatusInternalServerError,
		},
		{
			name:     "success",
			body:     `{"email": "a@b.com", "preferences": ["Gaming"]}`,
			wantCode: http.StatusOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := setupRouter(&mockService{prefErr: tc.mockErr})

			req := httptest.NewRequest(http.MethodPost, "/preferences", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tc.wantCode, w.Code)
		})
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := setupRouter(&mockService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","database":"connected"}`, w.Body.String())

	router = setupRouter(&mockService{healthErr: errors.New("store unreachable")})

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSiteEndpoint(t *testing.T) {
	router := setupRouter(&mockService{})

	req := httptest.NewRequest(http.MethodGet, "/site", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"title":"Join","subtitle":"","buttonLabel":"Subscribe","categories":["Gaming","Music"]}`,
		w.Body.String())
}
