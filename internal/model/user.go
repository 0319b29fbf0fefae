// Package model defines database models
package model

import "time"

type VerificationStatus string

const (
	StatusPending  VerificationStatus = "pending"
	StatusVerified VerificationStatus = "verified"
	StatusRejected VerificationStatus = "rejected"
)

type User struct {
	ID                 string             `gorm:"primaryKey" json:"id"`
	DiscordID          string             `gorm:"uniqueIndex;not null" json:"-"`
	DiscordUsername    string             `gorm:"not null" json:"discordUsername"`
	DiscordAvatar      string             `json:"discordAvatar,omitempty"`
	MonkeyTypeUsername *string            `gorm:"uniqueIndex" json:"monkeyTypeUsername,omitempty"`
	IsVerified         bool               `gorm:"index;default:false" json:"isVerified"`
	VerificationStatus VerificationStatus `gorm:"default:pending" json:"verificationStatus"`
	Branch             string             `json:"branch,omitempty"`
	Year               int                `json:"year,omitempty"`

	// Unicode-folded copies of both names. SQL LOWER() only folds ASCII on sqlite
	DiscordNameFolded string `gorm:"index" json:"-"`
	LinkedNameFolded  string `gorm:"index" json:"-"`

	// Secondary email verification. The code is only ever stored hashed
	EduEmail                  string     `gorm:"index" json:"-"`
	EduEmailVerified          bool       `gorm:"index;default:false" json:"eduEmailVerified"`
	VerificationCodeHash      string     `json:"-"`
	VerificationCodeExpiresAt *time.Time `json:"-"`
	LastVerificationEmailSent *time.Time `json:"-"`
	VerificationAttempts      int        `gorm:"default:0" json:"-"`

	Scores []Score `gorm:"foreignKey:UserID" json:"-"`

	LastUpdated time.Time `json:"-"`
	CreatedAt   time.Time `json:"-"`
}

// LinkedUsername returns the linked profile name or an empty string
func (u *User) LinkedUsername() string {
	if u == nil || u.MonkeyTypeUsername == nil {
		return ""
	}

	return *u.MonkeyTypeUsername
}

// Public is the subset of user fields exposed on leaderboards and search results
type Public struct {
	ID                 string `json:"_id"`
	DiscordUsername    string `json:"discordUsername"`
	DiscordAvatar      string `json:"discordAvatar,omitempty"`
	MonkeyTypeUsername string `json:"monkeyTypeUsername"`
	Branch             string `json:"branch,omitempty"`
	Year               int    `json:"year,omitempty"`
	EduEmailVerified   bool   `json:"eduEmailVerified"`
}
