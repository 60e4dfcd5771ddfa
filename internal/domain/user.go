package domain

import "time"

type Role string

const (
	RoleOwner    Role = "Owner"
	RoleCustomer Role = "Customer"
)

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	FullName     string
	Role         Role
	CreatedAt    time.Time
}

func (u *User) HasRole(role Role) bool {
	return u != nil && u.Role == role
}
