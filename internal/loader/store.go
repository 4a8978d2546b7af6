package loader

import (
	"context"

	models "github.com/RomainGaget-hub/foot-challenge/internal/models"
	store "github.com/RomainGaget-hub/foot-challenge/internal/store"
)

// StoreLoader serves the challenge-source contract straight from the
// database, for sessions living in the same process as the API.
type StoreLoader struct {
	store *store.Store
}

func NewStoreLoader(s *store.Store) *StoreLoader {
	return &StoreLoader{store: s}
}

func (l *StoreLoader) ListChallenges(ctx context.Context) ([]models.ChallengeSummary, error) {
	return l.store.ListChallengeSummaries(ctx)
}

func (l *StoreLoader) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	return l.store.GetChallenge(ctx, id)
}
