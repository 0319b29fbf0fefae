package model

// Identity is the verified Discord account behind a session. The OAuth
// exchange happens elsewhere, this service only ever sees the result.
type Identity struct {
	DiscordID string
	Name      string
	Avatar    string
}
