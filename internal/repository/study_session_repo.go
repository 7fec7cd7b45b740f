package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyai-backend/internal/models"
)

// ErrNotFound is returned when a row does not exist or is not owned by the caller.
var ErrNotFound = errors.New("not found")

type StudySessionRepo struct {
	pool *pgxpool.Pool
}

func NewStudySessionRepo(pool *pgxpool.Pool) *StudySessionRepo {
	return &StudySessionRepo{pool: pool}
}

func (r *StudySessionRepo) Create(ctx context.Context, s *models.StudySession) error {
	resultBytes, err := json.Marshal(s.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	query := `INSERT INTO study_sessions (user_id, user_email, topic, result)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`

	return r.pool.QueryRow(ctx, query, s.UserID, s.UserEmail, s.Topic, resultBytes).Scan(&s.ID, &s.CreatedAt)
}

func (r *StudySessionRepo) ListByUser(ctx context.Context, userID string) ([]*models.StudySession, error) {
	query := `SELECT id, user_id, user_email, topic, result, created_at
		FROM study_sessions WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []*models.StudySession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *StudySessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	query := `SELECT id, user_id, user_email, topic, result, created_at
		FROM study_sessions WHERE id = $1`

	s, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func (r *StudySessionRepo) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM study_sessions WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSession(row pgx.Row) (*models.StudySession, error) {
	s := &models.StudySession{}
	var resultBytes []byte
	if err := row.Scan(&s.ID, &s.UserID, &s.UserEmail, &s.Topic, &resultBytes, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(resultBytes, &s.Result); err != nil {
		return nil, fmt.Errorf("decode session %s result: %w", s.ID, err)
	}
	s.Result.Normalize()
	return s, nil
}
