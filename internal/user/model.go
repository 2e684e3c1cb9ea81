package user

import "time"

const (
	ModeNormal = "normal"
	ModeDemo   = "demo"
)

type User struct {
	ID               int       `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Email            string    `db:"email" json:"email"`
	PasswordHash     string    `db:"password_hash" json:"-"`
	Role             string    `db:"role" json:"role"`
	AccountMode      string    `db:"account_mode" json:"account_mode"`
	RealBalanceCents int64     `db:"real_balance_cents" json:"real_balance_cents"`
	DemoBalanceCents int64     `db:"demo_balance_cents" json:"demo_balance_cents"`
	Active           bool      `db:"active" json:"active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// LiveBalanceCents returns the balance the account mode selects. The
// other balance must never be touched by purchase operations.
func (u *User) LiveBalanceCents() int64 {
	if u.AccountMode == ModeDemo {
		return u.DemoBalanceCents
	}
	return u.RealBalanceCents
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type SwitchModeRequest struct {
	AccountMode string `json:"account_mode" binding:"required,oneof=normal demo"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}
