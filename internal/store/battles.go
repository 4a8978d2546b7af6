package store

import (
	"context"
	"database/sql"
	"errors"

	constants "github.com/RomainGaget-hub/foot-challenge/internal/constants"
	models "github.com/RomainGaget-hub/foot-challenge/internal/models"
)

func (s *Store) CreateBattle(ctx context.Context, b *models.Battle) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO battles (id, challenge_id, player1_id, player2_id, player1_score, player2_score, status, winner_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ChallengeID, b.Player1ID, nullable(b.Player2ID), b.Player1Score, b.Player2Score, b.Status, b.WinnerID)
	return err
}

func (s *Store) GetBattle(ctx context.Context, id string) (*models.Battle, error) {
	var b models.Battle
	var player2 sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, challenge_id, player1_id, player2_id, player1_score, player2_score, status, winner_id
		FROM battles WHERE id = ?`, id).
		Scan(&b.ID, &b.ChallengeID, &b.Player1ID, &player2, &b.Player1Score, &b.Player2Score, &b.Status, &b.WinnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBattleNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Player2ID = player2.String
	return &b, nil
}

func (s *Store) ListBattles(ctx context.Context) ([]models.Battle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, challenge_id, player1_id, player2_id, player1_score, player2_score, status, winner_id
		FROM battles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var battles []models.Battle
	for rows.Next() {
		var b models.Battle
		var player2 sql.NullString
		if err := rows.Scan(&b.ID, &b.ChallengeID, &b.Player1ID, &player2,
			&b.Player1Score, &b.Player2Score, &b.Status, &b.WinnerID); err != nil {
			return nil, err
		}
		b.Player2ID = player2.String
		battles = append(battles, b)
	}
	return battles, rows.Err()
}

// JoinBattle attaches the second player and moves the battle in progress.
func (s *Store) JoinBattle(ctx context.Context, id, player2ID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE battles SET player2_id = ?, status = ?
		WHERE id = ? AND status = ?`,
		player2ID, constants.BattleStatusInProgress, id, constants.BattleStatusPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrBattleNotFound
	}
	return nil
}

// CompleteBattle records the final scores and winner (nil winner on a tie)
// and bumps both players' win/loss tallies.
func (s *Store) CompleteBattle(ctx context.Context, id string, player1Score, player2Score int, winnerID *string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var player1ID string
	var player2 sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT player1_id, player2_id FROM battles WHERE id = ?`, id).
		Scan(&player1ID, &player2)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrBattleNotFound
	}
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE battles SET player1_score = ?, player2_score = ?, status = ?, winner_id = ?
		WHERE id = ?`,
		player1Score, player2Score, constants.BattleStatusCompleted, winnerID, id)
	if err != nil {
		return err
	}

	if winnerID != nil && player2.Valid {
		loserID := player1ID
		if *winnerID == player1ID {
			loserID = player2.String
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET battles_won = battles_won + 1 WHERE id = ?`, *winnerID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET battles_lost = battles_lost + 1 WHERE id = ?`, loserID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
