package models

import "time"

type PlanTier string

const (
	PlanFree    PlanTier = "FREE"
	PlanPremium PlanTier = "PREMIUM"
)

type User struct {
	UserID    int64      `json:"user_id"`
	UserName  string     `json:"user_name"`
	Plan      PlanTier   `json:"plan"`
	ProUntil  *time.Time `json:"pro_until"`
	CreatedAt time.Time  `json:"created_at"`
}

// Tier returns the effective plan: premium only counts while it has not lapsed.
func (u *User) Tier(now time.Time) PlanTier {
	if u.Plan == PlanPremium && u.ProUntil != nil && u.ProUntil.After(now) {
		return PlanPremium
	}
	return PlanFree
}

// DisplayName falls back to a neutral label when the channel gave no name
func (u *User) DisplayName() string {
	if u.UserName == "" {
		return "you"
	}
	return u.UserName
}
