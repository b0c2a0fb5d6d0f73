package models

import "time"

type User struct {
	ID        int64     `yaml:"id" json:"id"`
	Username  string    `yaml:"username" json:"username"`
	Email     string    `yaml:"email" json:"email"`
	Role      string    `yaml:"role" json:"role"` // user, admin
	CreatedAt time.Time `yaml:"-" json:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
