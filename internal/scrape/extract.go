// Package scrape turns a rendered profile page into personal-best records
package scrape

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// placeholder is what the profile page shows in a value cell without data
const placeholder = "-"

var (
	timeLabel   = regexp.MustCompile(`(?i)(\d+)\s*seconds?`)
	wordLabel   = regexp.MustCompile(`(?i)(\d+)\s*words?`)
	rawMarker   = regexp.MustCompile(`(?i)(\d+)\s*raw`)
	conMarker   = regexp.MustCompile(`(?i)(\d+)%\s*con`)
	leadingNumb = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)`)

	profileSelectors = []string{".profile", `[data-testid="profile"]`, ".profileTop", ".user"}
	bioSelectors     = []string{".bio", ".description", ".userBio", `[data-testid="bio"]`}
)

// Candidate is a score as read from the page, before validation
type Candidate struct {
	Category    string
	Speed       float64
	Accuracy    float64
	Consistency float64
	RawSpeed    float64
}

// Page is everything the ingestion pipeline needs from one profile page
type Page struct {
	Exists            bool
	BioContainsMarker bool
	Candidates        []Candidate
}

// Parse reads a full profile page. The marker match is case-insensitive
func Parse(html, marker string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile page, %w", err)
	}

	p := &Page{
		Exists:            profileExists(doc),
		BioContainsMarker: bioContains(doc, marker),
	}

	if p.Exists {
		p.Candidates = candidates(doc)
	}

	return p, nil
}

// Extract returns the candidate scores found in html. Missing regions yield
// no candidates, never an error.
func Extract(html string) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile page, %w", err)
	}

	return candidates(doc), nil
}

func candidates(doc *goquery.Document) []Candidate {
	var out []Candidate

	doc.Find(".pbsTime").First().Find(".group").Each(func(_ int, g *goquery.Selection) {
		c, ok := readQuick(g, timeLabel, "s")
		if !ok {
			return
		}

		// The detailed view is only rendered for time tests
		g.Find(".fullTest").First().Find("div").Each(func(_ int, d *goquery.Selection) {
			text := strings.TrimSpace(d.Text())

			if m := rawMarker.FindStringSubmatch(text); m != nil {
				c.RawSpeed, _ = strconv.ParseFloat(m[1], 64)
			}

			if m := conMarker.FindStringSubmatch(text); m != nil {
				c.Consistency, _ = strconv.ParseFloat(m[1], 64)
			}
		})

		out = append(out, c)
	})

	doc.Find(".pbsWords").First().Find(".group").Each(func(_ int, g *goquery.Selection) {
		if c, ok := readQuick(g, wordLabel, "w"); ok {
			out = append(out, c)
		}
	})

	return out
}

// readQuick reads the compact summary cell of a group
func readQuick(g *goquery.Selection, label *regexp.Regexp, suffix string) (Candidate, bool) {
	quick := g.Find(".quick").First()
	if quick.Length() == 0 {
		return Candidate{}, false
	}

	test, wpm, acc := quick.Find(".test").First(), quick.Find(".wpm").First(), quick.Find(".acc").First()
	if test.Length() == 0 || wpm.Length() == 0 || acc.Length() == 0 {
		return Candidate{}, false
	}

	wpmText := strings.TrimSpace(wpm.Text())
	accText := strings.TrimSpace(acc.Text())
	if isPlaceholder(wpmText) || isPlaceholder(accText) {
		return Candidate{}, false
	}

	m := label.FindStringSubmatch(strings.TrimSpace(test.Text()))
	if m == nil {
		return Candidate{}, false
	}

	speed, ok := leadingNumber(wpmText)
	if !ok || speed <= 0 {
		return Candidate{}, false
	}

	accuracy, ok := leadingNumber(strings.ReplaceAll(accText, "%", ""))
	if !ok || accuracy <= 0 {
		return Candidate{}, false
	}

	return Candidate{
		Category: m[1] + suffix,
		Speed:    speed,
		Accuracy: accuracy,
		RawSpeed: math.Round(speed * 100 / accuracy),
	}, true
}

func isPlaceholder(s string) bool {
	return s == "" || s == placeholder
}

func leadingNumber(s string) (float64, bool) {
	m := leadingNumb.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}

	f, err := strconv.ParseFloat(m[1], 64)
	return f, err == nil
}

func profileExists(doc *goquery.Document) bool {
	for _, s := range profileSelectors {
		if doc.Find(s).Length() > 0 {
			return true
		}
	}

	return strings.Contains(doc.Find("body").Text(), "Personal Bests")
}

func bioContains(doc *goquery.Document, marker string) bool {
	marker = strings.ToLower(strings.TrimSpace(marker))
	if marker == "" {
		return true
	}

	for _, s := range bioSelectors {
		if strings.Contains(strings.ToLower(doc.Find(s).First().Text()), marker) {
			return true
		}
	}

	return strings.Contains(strings.ToLower(doc.Find("body").Text()), marker)
}
