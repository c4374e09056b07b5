package model

import (
	"time"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User maps an identity-provider subject to an internal numeric id.
type User struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	ExternalID string    `gorm:"uniqueIndex;not null" json:"external_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       UserRole  `gorm:"type:varchar(20);default:'user'" json:"role"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
