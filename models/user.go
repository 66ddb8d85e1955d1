package models

import "time"

// UserRole представляет уровни доступа, соответствующие ENUM в БД.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleManager UserRole = "manager"
	RoleMember  UserRole = "member"
)

// User — учётная запись для входа. Не путать с Member (участник клуба):
// учётка может быть привязана к участнику через MemberID.
type User struct {
	ID           int       `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         UserRole  `json:"role" db:"role"`
	MemberID     *int      `json:"member_id,omitempty" db:"member_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
