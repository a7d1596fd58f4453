// Package model holds the gorm models and the documents shared across layers.
package model

import "time"

// Role values stored on User.Role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account. Email is stored lowercase and is unique.
type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"type:varchar(255);not null" json:"name"`
	Email       string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password    string     `gorm:"type:varchar(255);not null" json:"-"`
	Role        string     `gorm:"type:varchar(32);not null;default:user" json:"role"`
	IsActive    bool       `gorm:"not null;default:true" json:"isActive"`
	LastLoginAt *time.Time `json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}
