package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// DefaultCredits is granted when a user row is first observed.
const DefaultCredits int64 = 10

// Generation cost per artifact kind. Unknown kinds fall back to the image
// cost.
var Costs = map[string]int64{
	"image": 1,
	"video": 5,
}

func CostFor(kind string) int64 {
	if cost, ok := Costs[kind]; ok {
		return cost
	}
	return 1
}

// User tracks the credit balance for an externally authenticated subject.
// Identity fields are whatever the auth proxy presented last.
type User struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	Name           string    `json:"name,omitempty"`
	Email          string    `gorm:"index" json:"email,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	Credits        int64     `gorm:"not null" json:"credits"`
	ReferralCode   *string   `gorm:"uniqueIndex" json:"referral_code,omitempty"`
	ReferralClicks int64     `gorm:"not null;default:0" json:"referral_clicks"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

// Transaction records every balance movement for later reference.
type Transaction struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID      string       `gorm:"not null;index" json:"user_id"`
	Type        string       `gorm:"not null" json:"type"`
	Amount      int64        `gorm:"not null" json:"amount"`
	Description string       `json:"description,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
}

const (
	TransactionTypeDebit    = "debit"
	TransactionTypeCredit   = "credit"
	TransactionTypePurchase = "purchase"
	TransactionTypeReferral = "referral"
)

// Package is a purchasable credit bundle.
type Package struct {
	ID      string `json:"id"`
	Credits int64  `json:"credits"`
	Price   int64  `json:"price"`
	Label   string `json:"label"`
	Popular bool   `json:"popular"`
}

var Packages = []Package{
	{ID: "starter", Credits: 25, Price: 5, Label: "25 Credits", Popular: false},
	{ID: "popular", Credits: 100, Price: 15, Label: "100 Credits", Popular: true},
	{ID: "pro", Credits: 300, Price: 35, Label: "300 Credits", Popular: false},
}

func PackageByID(id string) (Package, bool) {
	for _, pkg := range Packages {
		if pkg.ID == id {
			return pkg, true
		}
	}
	return Package{}, false
}
