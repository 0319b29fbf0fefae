package internal

import (
	"typeboard/leaderboard-api/internal/leaderboard"
	"typeboard/leaderboard-api/internal/search"
	"typeboard/leaderboard-api/internal/service"
	"typeboard/leaderboard-api/internal/store"

	"gorm.io/gorm"
)

// Deps is everything the HTTP handlers need
type Deps struct {
	DB       *gorm.DB
	Store    *store.Store
	Ingestor *service.Ingestor
	Verifier *service.EmailVerifier
	Search   *search.Engine
	Ranker   *leaderboard.Ranker

	// TrackWords enables the words category
	TrackWords bool
	// BioMarker is the text a profile bio must contain to be linked
	BioMarker string
	// EmailDomain is the domain institutional addresses must belong to
	EmailDomain string
}
