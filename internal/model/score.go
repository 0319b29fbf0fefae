package model

import "time"

// Score is one category personal best of one user. Ingestion replaces the
// whole set of a user so there is never more than one row per category.
type Score struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID             string    `gorm:"index:idx_scores_user_category;not null" json:"-"`
	DiscordID          string    `gorm:"index;not null" json:"-"`
	MonkeyTypeUsername string    `gorm:"not null" json:"-"`
	Category           Category  `gorm:"index:idx_scores_category_wpm,priority:1;index:idx_scores_user_category;not null" json:"category"`
	WPM                int       `gorm:"column:wpm;index:idx_scores_category_wpm,priority:2,sort:desc" json:"wpm"`
	Accuracy           int       `json:"accuracy"`
	Consistency        int       `json:"consistency"`
	RawWPM             int       `gorm:"column:raw_wpm" json:"rawWpm"`
	PersonalBest       bool      `gorm:"index:idx_scores_user_category;default:false" json:"-"`
	LastUpdated        time.Time `json:"lastUpdated"`
	CreatedAt          time.Time `json:"-"`
}

// Entry is a score joined with its public owner
type Entry struct {
	WPM         int       `json:"wpm"`
	Accuracy    int       `json:"accuracy"`
	Consistency int       `json:"consistency"`
	RawWPM      int       `json:"rawWpm"`
	LastUpdated time.Time `json:"lastUpdated"`
	User        Public    `json:"user"`
}
