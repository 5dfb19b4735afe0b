package models

import "time"

// Role names. Registration only ever creates buyers.
const (
	RoleBuyer = "buyer"
	RoleAdmin = "admin"
)

// User is a storefront account.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"` // bcrypt hash, never serialised
	Role      string    `gorm:"size:20;not null;default:buyer" json:"role"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }
