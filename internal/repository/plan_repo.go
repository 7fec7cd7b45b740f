package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"studyai-backend/internal/logger"
	"studyai-backend/internal/models"
)

// planDB is the slice of *pgxpool.Pool the plan repo uses.
type planDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PlanRepo struct {
	db  planDB
	log *logger.Logger
}

func NewPlanRepo(db planDB, log *logger.Logger) *PlanRepo {
	return &PlanRepo{db: db, log: log}
}

// GetPlan never fails: a missing row, an unknown value or a query error all
// read as Free.
func (r *PlanRepo) GetPlan(ctx context.Context, userID string) models.Plan {
	var raw string
	err := r.db.QueryRow(ctx, "SELECT plan FROM user_plans WHERE user_id = $1", userID).Scan(&raw)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.log.Warn("Plan lookup failed, defaulting to Free", "user_id", userID, "error", err)
		}
		return models.PlanFree
	}
	plan, ok := models.ParsePlan(raw)
	if !ok {
		r.log.Warn("Unknown stored plan, defaulting to Free", "user_id", userID, "plan", raw)
		return models.PlanFree
	}
	return plan
}

func (r *PlanRepo) Upsert(ctx context.Context, p *models.UserPlan) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_plans (user_id, plan, razorpay_payment_id, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET plan = EXCLUDED.plan,
			razorpay_payment_id = EXCLUDED.razorpay_payment_id,
			updated_at = EXCLUDED.updated_at
	`, p.UserID, string(p.Plan), p.RazorpayPaymentID, p.UpdatedAt)
	return err
}
