// Package store is the SQLite persistence layer: challenges and their
// questions, the user leaderboard, battles, and session snapshots. The team
// list of a question is stored as serialized JSON text and deserialized on
// the way out.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	models "github.com/RomainGaget-hub/foot-challenge/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS challenges (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	difficulty INTEGER NOT NULL DEFAULT 1,
	background_image TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS questions (
	id TEXT PRIMARY KEY,
	challenge_id TEXT NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
	ordinal INTEGER NOT NULL,
	correct_answer TEXT NOT NULL,
	points INTEGER NOT NULL,
	hint TEXT NOT NULL DEFAULT '',
	teams TEXT,
	club TEXT,
	nationality TEXT
);

CREATE INDEX IF NOT EXISTS idx_questions_challenge ON questions(challenge_id, ordinal);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL DEFAULT '',
	points INTEGER NOT NULL DEFAULT 0,
	challenges_completed INTEGER NOT NULL DEFAULT 0,
	battles_won INTEGER NOT NULL DEFAULT 0,
	battles_lost INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS challenge_results (
	user_id TEXT NOT NULL,
	challenge_id TEXT NOT NULL,
	best_score INTEGER NOT NULL,
	completed_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, challenge_id)
);

CREATE TABLE IF NOT EXISTS battles (
	id TEXT PRIMARY KEY,
	challenge_id TEXT NOT NULL,
	player1_id TEXT NOT NULL,
	player2_id TEXT,
	player1_score INTEGER NOT NULL DEFAULT 0,
	player2_score INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'PENDING',
	winner_id TEXT
);

CREATE TABLE IF NOT EXISTS session_snapshots (
	session_id TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CountChallenges(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM challenges`).Scan(&n)
	return n, err
}

// ListChallengeSummaries aggregates totals server-side; totalPoints and
// totalQuestions are computed from the stored question set, never stored.
func (s *Store) ListChallengeSummaries(ctx context.Context) ([]models.ChallengeSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.type, c.name, c.description, c.difficulty, c.background_image,
		       COALESCE(SUM(q.points), 0), COUNT(q.id)
		FROM challenges c
		LEFT JOIN questions q ON q.challenge_id = c.id
		GROUP BY c.id
		ORDER BY c.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.ChallengeSummary
	for rows.Next() {
		var cs models.ChallengeSummary
		if err := rows.Scan(&cs.ID, &cs.Type, &cs.Name, &cs.Description, &cs.Difficulty,
			&cs.BackgroundImage, &cs.TotalPoints, &cs.TotalQuestions); err != nil {
			return nil, err
		}
		summaries = append(summaries, cs)
	}
	return summaries, rows.Err()
}

// GetChallenge returns the full challenge with its ordered questions. The
// clue case is chosen by the challenge type: the teams column is JSON text
// for the team challenges, club+nationality columns otherwise.
func (s *Store) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	var c models.Challenge
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, name, description, difficulty, background_image
		FROM challenges WHERE id = ?`, id).
		Scan(&c.ID, &c.Type, &c.Name, &c.Description, &c.Difficulty, &c.BackgroundImage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}

	kind, err := models.ResolveClueKind(c.Type)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, correct_answer, points, hint, teams, club, nationality
		FROM questions WHERE challenge_id = ? ORDER BY ordinal`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var q models.Question
		var teamsJSON, club, nationality sql.NullString
		if err := rows.Scan(&q.ID, &q.CorrectAnswer, &q.Points, &q.Hint,
			&teamsJSON, &club, &nationality); err != nil {
			return nil, err
		}
		switch kind {
		case models.ClueKindTeams:
			var teams []string
			if teamsJSON.Valid && teamsJSON.String != "" {
				if err := json.Unmarshal([]byte(teamsJSON.String), &teams); err != nil {
					return nil, fmt.Errorf("question %s: decode teams: %w", q.ID, err)
				}
			}
			q.Clue = models.Clue{Kind: models.ClueKindTeams, Teams: teams}
		case models.ClueKindCareer:
			q.Clue = models.Clue{Kind: models.ClueKindCareer, Club: club.String, Nationality: nationality.String}
		}
		c.Questions = append(c.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &c, nil
}

// PutChallenge inserts or replaces a challenge and its questions.
func (s *Store) PutChallenge(ctx context.Context, c *models.Challenge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO challenges (id, type, name, description, difficulty, background_image)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			type = excluded.type, name = excluded.name, description = excluded.description,
			difficulty = excluded.difficulty, background_image = excluded.background_image`,
		c.ID, c.Type, c.Name, c.Description, c.Difficulty, c.BackgroundImage)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE challenge_id = ?`, c.ID); err != nil {
		return err
	}

	for ordinal, q := range c.Questions {
		var teamsJSON, club, nationality any
		switch q.Clue.Kind {
		case models.ClueKindTeams:
			encoded, err := json.Marshal(q.Clue.Teams)
			if err != nil {
				return fmt.Errorf("question %s: encode teams: %w", q.ID, err)
			}
			teamsJSON = string(encoded)
		case models.ClueKindCareer:
			club = q.Clue.Club
			nationality = q.Clue.Nationality
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO questions (id, challenge_id, ordinal, correct_answer, points, hint, teams, club, nationality)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			q.ID, c.ID, ordinal, q.CorrectAnswer, q.Points, q.Hint, teamsJSON, club, nationality)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
