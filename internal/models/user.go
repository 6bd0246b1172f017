package models

import "time"

// User owns cards and receives notifications.
type User struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	Email         string    `gorm:"uniqueIndex;not null" json:"email"`
	Name          string    `json:"name"`
	Role          string    `gorm:"default:'user'" json:"role"`
	WalletAddress string    `gorm:"not null" json:"walletAddress"`
	PinHash       string    `gorm:"not null" json:"-"`
	Status        string    `gorm:"default:'active'" json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
