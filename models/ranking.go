package models

// Ranking statuses
const (
	RankStatusOK        = "ok"
	RankStatusNoMatches = "no_matches"
)

// ScoredPackage is a package with its per-factor scores, rank and explanation
type ScoredPackage struct {
	Package     Package
	Scores      map[string]float64
	TotalScore  float64
	Rank        int
	Explanation []string
}

// RankResult wraps the ranked list with a status so an empty candidate set is
// distinguishable from an error
type RankResult struct {
	Status  string
	Results []ScoredPackage
}
