package subscribers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nazarious-ucu/newsletter-signup-api/internal/models"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/repository"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var (
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrUnknownPreference = errors.New("preference is not in the configured category list")
	ErrNotSubscribed     = errors.New("email is not subscribed")
	ErrNotValidated      = errors.New("email is not validated yet")
)

type SubscribeOutcome string

const (
	OutcomeCreated           SubscribeOutcome = "created"
	OutcomeResent            SubscribeOutcome = "resent"
	OutcomeAlreadySubscribed SubscribeOutcome = "already_subscribed"
)

// SubscribeResult reports what happened to the record and, separately,
// whether the validation mail went out. Mail delivery is best-effort and its
// failure never undoes the persisted record.
type SubscribeResult struct {
	Outcome  SubscribeOutcome
	MailSent bool
}

type ValidationOutcome string

const (
	ValidationOK       ValidationOutcome = "validated"
	ValidationExpired  ValidationOutcome = "expired"
	ValidationNotFound ValidationOutcome = "not_found"
)

type SubscriberRepository interface {
	GetByEmail(ctx context.Context, email string) (models.Subscriber, error)
	GetByToken(ctx context.Context, token string) (models.Subscriber, error)
	Create(ctx context.Context, sub models.Subscriber) error
	ReissueToken(ctx context.Context, email, token string, issuedAt time.Time, preferences []string) error
	MarkValidated(ctx context.Context, token string, at time.Time) (bool, error)
	UpdatePreferences(ctx context.Context, email string, preferences []string, at time.Time) (bool, error)
	Ping(ctx context.Context) error
}

type LifecycleEmailer interface {
	SendValidation(email, token string) error
	SendWelcome(email string, preferences []string) error
}

type TokenIssuer interface {
	Issue() (string, time.Time, error)
	IsExpired(issuedAt, now time.Time) bool
}

type CategoryProvider interface {
	Categories() []string
}

type Service struct {
	repo       SubscriberRepository
	emailer    LifecycleEmailer
	tokens     TokenIssuer
	categories CategoryProvider
	log        zerolog.Logger
}

func NewService(
	repo SubscriberRepository,
	emailer LifecycleEmailer,
	tokens TokenIssuer,
	categories CategoryProvider,
	logger zerolog.Logger,
) *Service {
	logger = logger.With().Str("component", "SubscriberService").Logger()
	return &Service{
		repo:       repo,
		emailer:    emailer,
		tokens:     tokens,
		categories: categories,
		log:        logger,
	}
}

// Subscribe creates or refreshes a signup for the given email.
//
// A new email gets an Unvalidated record with a fresh token. An unvalidated
// email gets its token reissued, which invalidates the previous link. A
// validated email is treated as already subscribed and only its preferences
// are touched, when provided.
func (s *Service) Subscribe(ctx context.Context, data models.SignupData) (SubscribeResult, error) {
	email := normalizeEmail(data.Email)
	if !emailPattern.MatchString(email) {
		return SubscribeResult{}, ErrInvalidEmail
	}
	if err := s.checkPreferences(data.Preferences); err != nil {
		return SubscribeResult{}, err
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.resubscribe(ctx, existing, data.Preferences)
	case errors.Is(err, repository.ErrNotFound):
	default:
		return SubscribeResult{}, fmt.Errorf("lookup subscriber: %w", err)
	}

	tok, issuedAt, err := s.tokens.Issue()
	if err != nil {
		return SubscribeResult{}, fmt.Errorf("issue token: %w", err)
	}

	sub := models.Subscriber{
		Email:           email,
		EmailValidated:  false,
		ValidationToken: tok,
		TokenCreatedAt:  &issuedAt,
		Preferences:     data.Preferences,
		SignupDate:      issuedAt,
		UpdatedAt:       issuedAt,
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a concurrent-insert race on the unique email index; the
			// record exists now, so fall into the existing-record branch.
			existing, gerr := s.repo.GetByEmail(ctx, email)
			if gerr != nil {
				return SubscribeResult{}, fmt.Errorf("re-read after duplicate insert: %w", gerr)
			}
			return s.resubscribe(ctx, existing, data.Preferences)
		}
		return SubscribeResult{}, fmt.Errorf("create subscriber: %w", err)
	}

	s.log.Info().Str("email", email).Msg("subscriber created, validation pending")

	return SubscribeResult{
		Outcome:  OutcomeCreated,
		MailSent: s.sendValidation(email, tok),
	}, nil
}

func (s *Service) resubscribe(
	ctx context.Context,
	existing models.Subscriber,
	preferences []string,
) (SubscribeResult, error) {
	if existing.EmailValidated {
		if len(preferences) > 0 {
			if _, err := s.repo.UpdatePreferences(
				ctx, existing.Email, preferences, time.Now().UTC(),
			); err != nil {
				return SubscribeResult{}, fmt.Errorf("update preferences: %w", err)
			}
		}
		s.log.Info().Str("email", existing.Email).Msg("signup for an already validated email")
		return SubscribeResult{Outcome: OutcomeAlreadySubscribed}, nil
	}

	tok, issuedAt, err := s.tokens.Issue()
	if err != nil {
		return SubscribeResult{}, fmt.Errorf("issue token: %w", err)
	}
	if err := s.repo.ReissueToken(ctx, existing.Email, tok, issuedAt, preferences); err != nil {
		return SubscribeResult{}, fmt.Errorf("reissue token: %w", err)
	}

	s.log.Info().Str("email", existing.Email).Msg("validation token reissued")

	return SubscribeResult{
		Outcome:  OutcomeResent,
		MailSent: s.sendValidation(existing.Email, tok),
	}, nil
}

// Validate consumes a token from a validation link.
//
// When two calls race on the same token, the conditional store update has
// exactly one winner; the loser observes the token as already cleared and
// gets ValidationNotFound, same as any stale link.
func (s *Service) Validate(ctx context.Context, tok string) (ValidationOutcome, error) {
	sub, err := s.repo.GetByToken(ctx, tok)
	if errors.Is(err, repository.ErrNotFound) {
		return ValidationNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup token: %w", err)
	}

	now := time.Now().UTC()
	if sub.TokenCreatedAt == nil || s.tokens.IsExpired(*sub.TokenCreatedAt, now) {
		s.log.Info().Str("email", sub.Email).Msg("expired validation token presented")
		return ValidationExpired, nil
	}

	won, err := s.repo.MarkValidated(ctx, tok, now)
	if err != nil {
		return "", fmt.Errorf("mark validated: %w", err)
	}
	if !won {
		return ValidationNotFound, nil
	}

	s.log.Info().Str("email", sub.Email).Msg("email validated")

	if err := s.emailer.SendWelcome(sub.Email, sub.Preferences); err != nil {
		// The state change is authoritative; a lost welcome mail stays a warning.
		s.log.Warn().Err(err).Str("email", sub.Email).Msg("failed to send welcome email")
	}

	return ValidationOK, nil
}

// UpdatePreferences replaces the preference set of a validated subscriber.
// Unvalidated subscribers can only set preferences at signup time.
func (s *Service) UpdatePreferences(ctx context.Context, data models.PreferencesData) error {
	email := normalizeEmail(data.Email)

	sub, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotSubscribed
	}
	if err != nil {
		return fmt.Errorf("lookup subscriber: %w", err)
	}
	if !sub.EmailValidated {
		return ErrNotValidated
	}
	if err := s.checkPreferences(data.Preferences); err != nil {
		return err
	}

	ok, err := s.repo.UpdatePreferences(ctx, email, data.Preferences, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	if !ok {
		return ErrNotSubscribed
	}

	s.log.Info().Str("email", email).Int("count", len(data.Preferences)).Msg("preferences updated")
	return nil
}

// Health reports store reachability, no side effects.
func (s *Service) Health(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) checkPreferences(preferences []string) error {
	if len(preferences) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(preferences))
	for _, c := range s.categories.Categories() {
		allowed[c] = true
	}
	for _, p := range preferences {
		if !allowed[p] {
			return fmt.Errorf("%w: %q", ErrUnknownPreference, p)
		}
	}
	return nil
}

func (s *Service) sendValidation(email, tok string) bool {
	if err := s.emailer.SendValidation(email, tok); err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("failed to send validation email")
		return false
	}
	return true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
