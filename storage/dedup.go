package storage

import (
	"strings"

	"travel-package-scraper/models"
)

// minIdentityURLLength: URLs this short are placeholders, not identities
const minIdentityURLLength = 10

// hasURLIdentity reports whether a package's URL is long enough to serve as
// its dedup key
func hasURLIdentity(p models.Package) bool {
	return len(strings.TrimSpace(p.URL)) > minIdentityURLLength
}

// isDuplicate applies the dedup rules against packages already stored for
// the same agency: identical URL when the URL carries identity, otherwise
// identical (title, durationDays).
func isDuplicate(existing []models.Package, candidate models.Package) bool {
	if hasURLIdentity(candidate) {
		for _, e := range existing {
			if e.URL == candidate.URL {
				return true
			}
		}
	}
	for _, e := range existing {
		if e.Title == candidate.Title && e.DurationDays == candidate.DurationDays {
			return true
		}
	}
	return false
}
