package subscribers_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nazarious-ucu/newsletter-signup-api/internal/models"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/repository"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/services/subscribers"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/services/token"
)

// racingRepo simulates a concurrent signup for the same email: the record is
// not visible on the first lookup, but the insert hits the unique index.
type racingRepo struct {
	*fakeRepo
	firstLookupDone bool
}

func (r *racingRepo) GetByEmail(ctx context.Context, email string) (models.Subscriber, error) {
	if !r.firstLookupDone {
		r.firstLookupDone = true

		issuedAt := time.Now().UTC()
		r.subs[email] = models.Subscriber{
			Email:           email,
			ValidationToken: "competitor-token",
			TokenCreatedAt:  &issuedAt,
			SignupDate:      issuedAt,
			UpdatedAt:       issuedAt,
		}
		return models.Subscriber{}, repository.ErrNotFound
	}
	return r.fakeRepo.GetByEmail(ctx, email)
}

func (r *racingRepo) Create(context.Context, models.Subscriber) error {
	return repository.ErrDuplicate
}

func TestSubscribeDuplicateInsertRaceFallsIntoExistingBranch(t *testing.T) {
	repo := &racingRepo{fakeRepo: newFakeRepo()}
	emailer := &fakeEmailer{}
	svc := subscribers.NewService(
		repo,
		emailer,
		token.NewService(),
		&fakeCategories{list: []string{"Gaming"}},
		zerolog.Nop(),
	)

	res, err := svc.Subscribe(context.Background(), models.SignupData{Email: "race@x.com"})
	require.NoError(t, err, "a lost insert race must never surface as a hard failure")

	assert.Equal(t, subscribers.OutcomeResent, res.Outcome)
	assert.Len(t, repo.subs, 1)
	assert.NotEqual(t, "competitor-token", repo.subs["race@x.com"].ValidationToken)
}
