package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hray3182/MedLine/internal/database"
	"github.com/hray3182/MedLine/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreate registers the user on first contact and keeps the display
// name current. An empty name never overwrites a known one.
func (r *UserRepository) GetOrCreate(ctx context.Context, userID int64, userName string) (*models.User, error) {
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO users (user_id, user_name) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE
		 SET user_name = CASE WHEN EXCLUDED.user_name = '' THEN users.user_name ELSE EXCLUDED.user_name END
		 RETURNING user_id, user_name, plan, pro_until, created_at`,
		userID, userName,
	).Scan(&user.UserID, &user.UserName, &user.Plan, &user.ProUntil, &user.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT user_id, user_name, plan, pro_until, created_at FROM users WHERE user_id = $1`,
		userID,
	).Scan(&user.UserID, &user.UserName, &user.Plan, &user.ProUntil, &user.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

// PlanTier reports the effective plan at now; unknown users are on the free
// plan.
func (r *UserRepository) PlanTier(ctx context.Context, userID int64, now time.Time) (models.PlanTier, error) {
	user, err := r.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return models.PlanFree, nil
	}
	if err != nil {
		return "", err
	}
	return user.Tier(now), nil
}

func (r *UserRepository) SetPlan(ctx context.Context, userID int64, plan models.PlanTier, until *time.Time) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO users (user_id, plan, pro_until) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET plan = EXCLUDED.plan, pro_until = EXCLUDED.pro_until`,
		userID, string(plan), until,
	)
	return err
}
