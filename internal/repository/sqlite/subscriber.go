package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nazarious-ucu/newsletter-signup-api/internal/metrics"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/models"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/repository"

	_ "modernc.org/sqlite"
)

const selectColumns = `id, email, email_validated, validation_token, token_created_at,
		preferences, signup_date, validation_date, updated_at`

// SubscriberRepository persists subscriber records in SQLite with structured
// logging and metrics.
type SubscriberRepository struct {
	DB  *sql.DB
	log zerolog.Logger
	m   *metrics.Metrics
}

// NewSubscriberRepository constructs a repository with logger context and
// metrics collector.
func NewSubscriberRepository(
	db *sql.DB,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *SubscriberRepository {
	logger = logger.With().Str("component", "SubscriberRepository").Logger()
	return &SubscriberRepository{DB: db, log: logger, m: m}
}

// GetByEmail returns the subscriber for the given email, repository.ErrNotFound
// when absent.
func (r *SubscriberRepository) GetByEmail(ctx context.Context, email string) (models.Subscriber, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM subscribers WHERE email = ?`, email,
	)
	return r.scanSubscriber(ctx, row)
}

// GetByToken returns the unvalidated subscriber holding the given token.
func (r *SubscriberRepository) GetByToken(ctx context.Context, token string) (models.Subscriber, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM subscribers
		 WHERE validation_token = ? AND email_validated = 0`, token,
	)
	return r.scanSubscriber(ctx, row)
}

// Create inserts a new subscriber, returns repository.ErrDuplicate when the
// email is already present.
func (r *SubscriberRepository) Create(ctx context.Context, sub models.Subscriber) error {
	start := time.Now()
	r.log.Debug().Ctx(ctx).Str("email", sub.Email).Msg("inserting new subscriber record")

	prefs, err := marshalPreferences(sub.Preferences)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO subscribers
		    (email, email_validated, validation_token, token_created_at,
		     preferences, signup_date, validation_date, updated_at)
		 VALUES (?, 0, ?, ?, ?, ?, null, ?)`,
		sub.Email, sub.ValidationToken, sub.TokenCreatedAt, prefs, sub.SignupDate, sub.UpdatedAt,
	)
	dur := time.Since(start)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			r.log.Warn().Ctx(ctx).
				Str("email", sub.Email).
				Msg("subscriber already exists, abort create")
			r.m.BusinessErrors.WithLabelValues("subscriber_exists", "duplicate_email", "warning").Inc()
			return repository.ErrDuplicate
		}
		r.log.Error().Err(err).Ctx(ctx).
			Dur("duration", dur).
			Msg("failed to insert subscriber")
		r.m.TechnicalErrors.WithLabelValues("db_insert_error", err.Error(), "critical").Inc()
		return err
	}

	r.log.Info().Ctx(ctx).
		Str("email", sub.Email).
		Dur("duration", dur).
		Msg("subscriber created successfully")
	return nil
}

// ReissueToken replaces the validation token of an unvalidated subscriber,
// invalidating the previous one. A non-nil preferences slice replaces the
// stored preference set in the same statement.
func (r *SubscriberRepository) ReissueToken(
	ctx context.Context,
	email, token string,
	issuedAt time.Time,
	preferences []string,
) error {
	start := time.Now()
	r.log.Debug().Ctx(ctx).Str("email", email).Msg("reissuing validation token")

	var (
		res sql.Result
		err error
	)
	if preferences != nil {
		var prefs string
		prefs, err = marshalPreferences(preferences)
		if err != nil {
			return err
		}
		res, err = r.DB.ExecContext(ctx,
			`UPDATE subscribers
			 SET validation_token = ?, token_created_at = ?, preferences = ?, updated_at = ?
			 WHERE email = ? AND email_validated = 0`,
			token, issuedAt, prefs, issuedAt, email,
		)
	} else {
		res, err = r.DB.ExecContext(ctx,
			`UPDATE subscribers
			 SET validation_token = ?, token_created_at = ?, updated_at = ?
			 WHERE email = ? AND email_validated = 0`,
			token, issuedAt, issuedAt, email,
		)
	}
	dur := time.Since(start)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).
			Str("email", email).
			Msg("failed to reissue validation token")
		r.m.TechnicalErrors.WithLabelValues("db_update_error", err.Error(), "critical").Inc()
		return err
	}

	count, err := res.RowsAffected()
	if err != nil {
		r.m.TechnicalErrors.WithLabelValues("db_rows_error", err.Error(), "critical").Inc()
		return err
	}
	if count == 0 {
		return repository.ErrNotFound
	}

	r.log.Info().Ctx(ctx).
		Str("email", email).
		Dur("duration", dur).
		Msg("validation token reissued")
	return nil
}

// MarkValidated flips an unvalidated subscriber to validated and clears the
// token fields. The WHERE clause keys on the token and the unvalidated state,
// so concurrent calls with the same token have exactly one winner.
func (r *SubscriberRepository) MarkValidated(
	ctx context.Context,
	token string,
	at time.Time,
) (bool, error) {
	start := time.Now()
	r.log.Debug().Ctx(ctx).Msg("consuming validation token")

	res, err := r.DB.ExecContext(ctx,
		`UPDATE subscribers
		 SET email_validated = 1, validation_date = ?, updated_at = ?,
		     validation_token = null, token_created_at = null
		 WHERE validation_token = ? AND email_validated = 0`,
		at, at, token,
	)
	dur := time.Since(start)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).
			Msg("failed to execute validation update")
		r.m.TechnicalErrors.WithLabelValues("db_update_error", err.Error(), "critical").Inc()
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		r.m.TechnicalErrors.WithLabelValues("db_rows_error", err.Error(), "critical").Inc()
		return false, err
	}

	r.log.Info().Ctx(ctx).
		Bool("consumed", count > 0).
		Dur("duration", dur).
		Msg("validation update completed")
	return count > 0, nil
}

// UpdatePreferences replaces the stored preference set wholesale.
func (r *SubscriberRepository) UpdatePreferences(
	ctx context.Context,
	email string,
	preferences []string,
	at time.Time,
) (bool, error) {
	start := time.Now()
	r.log.Debug().Ctx(ctx).Str("email", email).Msg("updating preferences")

	prefs, err := marshalPreferences(preferences)
	if err != nil {
		return false, err
	}

	res, err := r.DB.ExecContext(ctx,
		`UPDATE subscribers SET preferences = ?, updated_at = ? WHERE email = ?`,
		prefs, at, email,
	)
	dur := time.Since(start)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).
			Str("email", email).
			Msg("failed to update preferences")
		r.m.TechnicalErrors.WithLabelValues("db_update_error", err.Error(), "critical").Inc()
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		r.m.TechnicalErrors.WithLabelValues("db_rows_error", err.Error(), "critical").Inc()
		return false, err
	}

	r.log.Info().Ctx(ctx).
		Str("email", email).
		Dur("duration", dur).
		Msg("preferences updated")
	return count > 0, nil
}

// Ping reports database reachability.
func (r *SubscriberRepository) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

func (r *SubscriberRepository) scanSubscriber(
	ctx context.Context,
	row *sql.Row,
) (models.Subscriber, error) {
	var (
		sub            models.Subscriber
		token          sql.NullString
		tokenCreatedAt sql.NullTime
		validationDate sql.NullTime
		prefs          string
	)

	err := row.Scan(
		&sub.ID, &sub.Email, &sub.EmailValidated, &token, &tokenCreatedAt,
		&prefs, &sub.SignupDate, &validationDate, &sub.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Subscriber{}, repository.ErrNotFound
	}
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Msg("failed to scan subscriber row")
		r.m.TechnicalErrors.WithLabelValues("db_scan_error", err.Error(), "critical").Inc()
		return models.Subscriber{}, err
	}

	if token.Valid {
		sub.ValidationToken = token.String
	}
	if tokenCreatedAt.Valid {
		t := tokenCreatedAt.Time
		sub.TokenCreatedAt = &t
	}
	if validationDate.Valid {
		t := validationDate.Time
		sub.ValidationDate = &t
	}
	if err := json.Unmarshal([]byte(prefs), &sub.Preferences); err != nil {
		r.log.Error().Err(err).Ctx(ctx).Msg("failed to decode preferences column")
		r.m.TechnicalErrors.WithLabelValues("db_scan_error", err.Error(), "critical").Inc()
		return models.Subscriber{}, err
	}

	return sub, nil
}

func marshalPreferences(preferences []string) (string, error) {
	if preferences == nil {
		preferences = []string{}
	}
	data, err := json.Marshal(preferences)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
