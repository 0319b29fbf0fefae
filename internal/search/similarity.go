package search

import (
	"strings"
	"unicode/utf8"
)

// Levenshtein returns the edit distance between a and b counted in runes
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}

	return prev[len(rb)]
}

// Similarity scores query against a user's two names. The result is
// 1 - distance/maxLen for the closer name, where maxLen is the longest of
// the query and both names. field reports which name was closer, an empty
// linked name never matches.
func Similarity(query, discordName, linkedName string) (score float64, field string) {
	q := strings.ToLower(query)

	discordDist := Levenshtein(q, strings.ToLower(discordName))
	linkedDist := -1
	if linkedName != "" {
		linkedDist = Levenshtein(q, strings.ToLower(linkedName))
	}

	maxLen := max(utf8.RuneCountInString(query), utf8.RuneCountInString(discordName), utf8.RuneCountInString(linkedName))
	if maxLen == 0 {
		return 0, MatchDiscord
	}

	dist, field := discordDist, MatchDiscord
	if linkedDist >= 0 && linkedDist <= discordDist {
		dist, field = linkedDist, MatchLinked
	}

	return 1 - float64(dist)/float64(maxLen), field
}

// Tier ranks how well query matches any of names: 3 exact, 2 prefix,
// 1 otherwise. Comparison ignores case.
func Tier(query string, names ...string) int {
	q := strings.ToLower(query)

	tier := TierSubstring
	for _, n := range names {
		n = strings.ToLower(n)

		switch {
		case n == q:
			return TierExact
		case strings.HasPrefix(n, q):
			tier = TierPrefix
		}
	}

	return tier
}
