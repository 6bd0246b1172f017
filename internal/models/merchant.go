package models

import "time"

// Merchant receives settled payments at its wallet address.
type Merchant struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"userId"`
	BusinessName  string    `gorm:"not null" json:"businessName"`
	BusinessType  string    `json:"businessType"`
	WalletAddress string    `gorm:"not null" json:"walletAddress"`
	Status        string    `gorm:"default:'active'" json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// MerchantSummary is the trimmed merchant view returned by fast validation.
type MerchantSummary struct {
	ID           uint   `json:"id"`
	BusinessName string `json:"businessName"`
}
