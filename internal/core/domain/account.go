package domain

import "time"

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
)

// CanManage reports whether the role may edit the catalog and the user list.
func (r Role) CanManage() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return true
	}
	return false
}

type Business struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID           string    `json:"id"`
	BusinessID   string    `json:"business_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type Session struct {
	Token      string    `json:"token"`
	UserID     string    `json:"user_id"`
	BusinessID string    `json:"business_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Actor is the authenticated user on whose behalf an operation runs.
type Actor struct {
	UserID     string
	BusinessID string
	Role       Role
}

func (a Actor) CartKey() string {
	return a.BusinessID + ":" + a.UserID
}
