package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	models "github.com/RomainGaget-hub/foot-challenge/internal/models"
)

// ListUsersByPoints returns the leaderboard, highest points first.
func (s *Store) ListUsersByPoints(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, email, points, challenges_completed, battles_won, battles_lost
		FROM users ORDER BY points DESC, username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Points,
			&u.ChallengesCompleted, &u.BattlesWon, &u.BattlesLost); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, points, challenges_completed, battles_won, battles_lost
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.Points,
			&u.ChallengesCompleted, &u.BattlesWon, &u.BattlesLost)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) PutUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, points, challenges_completed, battles_won, battles_lost)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username, email = excluded.email, points = excluded.points,
			challenges_completed = excluded.challenges_completed,
			battles_won = excluded.battles_won, battles_lost = excluded.battles_lost`,
		u.ID, u.Username, u.Email, u.Points, u.ChallengesCompleted, u.BattlesWon, u.BattlesLost)
	return err
}

// RecordChallengeResult stores a completed run for a user. The per-challenge
// best only ever increases; user points grow by the improvement over the
// previous best, and the first clear bumps challenges_completed.
func (s *Store) RecordChallengeResult(ctx context.Context, userID, challengeID string, score int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var best int
	firstClear := false
	err = tx.QueryRowContext(ctx, `
		SELECT best_score FROM challenge_results WHERE user_id = ? AND challenge_id = ?`,
		userID, challengeID).Scan(&best)
	if errors.Is(err, sql.ErrNoRows) {
		firstClear = true
	} else if err != nil {
		return err
	}

	if !firstClear && score <= best {
		return tx.Commit()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO challenge_results (user_id, challenge_id, best_score, completed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, challenge_id) DO UPDATE SET
			best_score = excluded.best_score, completed_at = excluded.completed_at`,
		userID, challengeID, score, time.Now().Unix())
	if err != nil {
		return err
	}

	delta := score - best
	if firstClear {
		delta = score
		_, err = tx.ExecContext(ctx, `
			UPDATE users SET points = points + ?, challenges_completed = challenges_completed + 1
			WHERE id = ?`, delta, userID)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE users SET points = points + ? WHERE id = ?`, delta, userID)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

// BestResult returns the user's recorded best for a challenge, 0 when the
// challenge was never completed.
func (s *Store) BestResult(ctx context.Context, userID, challengeID string) (int, error) {
	var best int
	err := s.db.QueryRowContext(ctx, `
		SELECT best_score FROM challenge_results WHERE user_id = ? AND challenge_id = ?`,
		userID, challengeID).Scan(&best)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return best, nil
}
