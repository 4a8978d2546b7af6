package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	models "github.com/RomainGaget-hub/foot-challenge/internal/models"
	util "github.com/RomainGaget-hub/foot-challenge/internal/util"
)

type seedFile struct {
	Challenges []models.Challenge `json:"challenges"`
	Users      []models.User      `json:"users"`
	Battles    []models.Battle    `json:"battles"`
}

// SeedFromFile loads fixture data into an empty database. A database that
// already has challenges is left alone.
func (s *Store) SeedFromFile(ctx context.Context, path string) error {
	var existing int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM challenges`).Scan(&existing); err != nil {
		return err
	}
	if existing > 0 {
		util.LogInfo("Database already seeded (%d challenges), skipping %s", existing, path)
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	for i := range seed.Challenges {
		challenge := &seed.Challenges[i]
		kind, err := models.ResolveClueKind(challenge.Type)
		if err != nil {
			return fmt.Errorf("challenge %s: %w", challenge.ID, err)
		}
		for j := range challenge.Questions {
			challenge.Questions[j].Clue.Kind = kind
		}
		if err := s.PutChallenge(ctx, challenge); err != nil {
			return fmt.Errorf("seed challenge %s: %w", challenge.ID, err)
		}
	}
	for i := range seed.Users {
		if err := s.PutUser(ctx, &seed.Users[i]); err != nil {
			return fmt.Errorf("seed user %s: %w", seed.Users[i].ID, err)
		}
	}
	for i := range seed.Battles {
		if err := s.CreateBattle(ctx, &seed.Battles[i]); err != nil {
			return fmt.Errorf("seed battle %s: %w", seed.Battles[i].ID, err)
		}
	}

	util.LogInfo("Seeded %d challenges, %d users, %d battles from %s",
		len(seed.Challenges), len(seed.Users), len(seed.Battles), path)
	return nil
}
