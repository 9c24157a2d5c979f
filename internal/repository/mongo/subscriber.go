package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Nazarious-ucu/newsletter-signup-api/internal/metrics"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/models"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/repository"
)

const connectTimeout = 10 * time.Second

type subscriberDoc struct {
	Email           string     `bson:"email"`
	EmailValidated  bool       `bson:"email_validated"`
	ValidationToken string     `bson:"validation_token,omitempty"`
	TokenCreatedAt  *time.Time `bson:"token_created_at,omitempty"`
	Preferences     []string   `bson:"content_preferences"`
	SignupDate      time.Time  `bson:"signup_date"`
	ValidationDate  *time.Time `bson:"validation_date,omitempty"`
	UpdatedAt       time.Time  `bson:"updated_at"`
}

// SubscriberRepository persists subscriber documents in MongoDB, one document
// per subscriber, keyed by a unique email index.
type SubscriberRepository struct {
	col *mongo.Collection
	log zerolog.Logger
	m   *metrics.Metrics
}

// Connect opens a client and verifies the deployment is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

func NewSubscriberRepository(
	col *mongo.Collection,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *SubscriberRepository {
	logger = logger.With().Str("component", "MongoSubscriberRepository").Logger()
	return &SubscriberRepository{col: col, log: logger, m: m}
}

// EnsureIndexes creates the unique email index the signup flow relies on for
// serializing concurrent inserts.
func (r *SubscriberRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "validation_token", Value: 1}},
			Options: options.Index().SetPartialFilterExpression(
				bson.D{{Key: "validation_token", Value: bson.D{{Key: "$exists", Value: true}}}},
			),
		},
	})
	return err
}

func (r *SubscriberRepository) GetByEmail(ctx context.Context, email string) (models.Subscriber, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *SubscriberRepository) GetByToken(ctx context.Context, token string) (models.Subscriber, error) {
	return r.findOne(ctx, bson.M{"validation_token": token, "email_validated": false})
}

func (r *SubscriberRepository) Create(ctx context.Context, sub models.Subscriber) error {
	doc := subscriberDoc{
		Email:           sub.Email,
		EmailValidated:  sub.EmailValidated,
		ValidationToken: sub.ValidationToken,
		TokenCreatedAt:  sub.TokenCreatedAt,
		Preferences:     sub.Preferences,
		SignupDate:      sub.SignupDate,
		ValidationDate:  sub.ValidationDate,
		UpdatedAt:       sub.UpdatedAt,
	}
	if doc.Preferences == nil {
		doc.Preferences = []string{}
	}

	_, err := r.col.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		r.log.Warn().Ctx(ctx).Str("email", sub.Email).Msg("subscriber already exists, abort create")
		r.m.BusinessErrors.WithLabelValues("subscriber_exists", "duplicate_email", "warning").Inc()
		return repository.ErrDuplicate
	}
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Msg("failed to insert subscriber document")
		r.m.TechnicalErrors.WithLabelValues("db_insert_error", err.Error(), "critical").Inc()
		return err
	}

	r.log.Info().Ctx(ctx).Str("email", sub.Email).Msg("subscriber created successfully")
	return nil
}

func (r *SubscriberRepository) ReissueToken(
	ctx context.Context,
	email, token string,
	issuedAt time.Time,
	preferences []string,
) error {
	set := bson.M{
		"validation_token": token,
		"token_created_at": issuedAt,
		"updated_at":       issuedAt,
	}
	if preferences != nil {
		set["content_preferences"] = preferences
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{"email": email, "email_validated": false},
		bson.M{"$set": set},
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Str("email", email).Msg("failed to reissue validation token")
		r.m.TechnicalErrors.WithLabelValues("db_update_error", err.Error(), "critical").Inc()
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}

	r.log.Info().Ctx(ctx).Str("email", email).Msg("validation token reissued")
	return nil
}

// MarkValidated consumes the token atomically; the filter keys on the token
// and the unvalidated state, so concurrent calls have exactly one winner.
func (r *SubscriberRepository) MarkValidated(
	ctx context.Context,
	token string,
	at time.Time,
) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"validation_token": token, "email_validated": false},
		bson.M{
			"$set": bson.M{
				"email_validated": true,
				"validation_date": at,
				"updated_at":      at,
			},
			"$unset": bson.M{
				"validation_token": "",
				"token_created_at": "",
			},
		},
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Msg("failed to execute validation update")
		r.m.TechnicalErrors.WithLabelValues("db_update_error", err.Error(), "critical").Inc()
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *SubscriberRepository) UpdatePreferences(
	ctx context.Context,
	email string,
	preferences []string,
	at time.Time,
) (bool, error) {
	if preferences == nil {
		preferences = []string{}
	}
	res, err := r.col.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"content_preferences": preferences, "updated_at": at}},
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Str("email", email).Msg("failed to update preferences")
		r.m.TechnicalErrors.WithLabelValues("db_update_error", err.Error(), "critical").Inc()
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *SubscriberRepository) Ping(ctx context.Context) error {
	return r.col.Database().Client().Ping(ctx, nil)
}

func (r *SubscriberRepository) findOne(ctx context.Context, filter bson.M) (models.Subscriber, error) {
	var doc subscriberDoc
	err := r.col.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Subscriber{}, repository.ErrNotFound
	}
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Msg("failed to decode subscriber document")
		r.m.TechnicalErrors.WithLabelValues("db_query_error", err.Error(), "critical").Inc()
		return models.Subscriber{}, err
	}

	return models.Subscriber{
		Email:           doc.Email,
		EmailValidated:  doc.EmailValidated,
		ValidationToken: doc.ValidationToken,
		TokenCreatedAt:  doc.TokenCreatedAt,
		Preferences:     doc.Preferences,
		SignupDate:      doc.SignupDate,
		ValidationDate:  doc.ValidationDate,
		UpdatedAt:       doc.UpdatedAt,
	}, nil
}
