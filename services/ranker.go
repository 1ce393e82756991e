package services

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"travel-package-scraper/models"
	"travel-package-scraper/utils"
)

// Ranking factor names, also the keys of ScoredPackage.Scores and of the
// weight map
const (
	FactorDestination = "destination_match"
	FactorDuration    = "duration_match"
	FactorBudget      = "budget_match"
	FactorTrust       = "trust_score"
	FactorReviews     = "reviews"
	FactorInclusions  = "inclusions"
)

// DefaultMaxResults is used when Rank is called with a non-positive limit
const DefaultMaxResults = 5

const neutralScore = 0.5

var factorOrder = []string{
	FactorDestination, FactorDuration, FactorBudget,
	FactorTrust, FactorReviews, FactorInclusions,
}

// DefaultWeights returns the stock factor weights
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		FactorDestination: 0.30,
		FactorDuration:    0.20,
		FactorBudget:      0.25,
		FactorTrust:       0.10,
		FactorReviews:     0.10,
		FactorInclusions:  0.05,
	}
}

// Ranker scores candidate packages against an intent
type Ranker struct {
	weights map[string]float64
	logger  *utils.Logger
}

// NewRanker creates a Ranker. Factors missing from weights take their default.
func NewRanker(weights map[string]float64, logger *utils.Logger) *Ranker {
	w := DefaultWeights()
	for k, v := range weights {
		if _, ok := w[k]; ok {
			w[k] = v
		}
	}
	logger.Debug("Ranker initialized with weights: %v", w)
	return &Ranker{weights: w, logger: logger}
}

// Rank scores candidates, orders them by descending total (input order
// breaks ties) and keeps the top maxResults. agencies supplies trust scores
// keyed by agency ID; unknown agencies count as neutral.
func (r *Ranker) Rank(intent models.Intent, candidates []models.Package, agencies map[int64]models.AgencyRef, maxResults int) models.RankResult {
	if len(candidates) == 0 {
		r.logger.Warn("No packages to rank")
		return models.RankResult{Status: models.RankStatusNoMatches, Results: []models.ScoredPackage{}}
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	r.logger.Info("Ranking %d packages for destinations %v", len(candidates), intent.Destinations)

	scored := make([]models.ScoredPackage, 0, len(candidates))
	for _, p := range candidates {
		var trust float64
		if a, ok := agencies[p.AgencyID]; ok {
			trust = a.TrustScore
		}
		scores := map[string]float64{
			FactorDestination: destinationScore(p, intent),
			FactorDuration:    durationScore(p, intent),
			FactorBudget:      budgetScore(p, intent),
			FactorTrust:       trustScore(trust, p.SourceConfidenceScore),
			FactorReviews:     reviewsScore(p),
			FactorInclusions:  inclusionsScore(p, intent),
		}
		scored = append(scored, models.ScoredPackage{
			Package:    p,
			Scores:     scores,
			TotalScore: r.total(scores),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].TotalScore > scored[j].TotalScore
	})
	if len(scored) > maxResults {
		scored = scored[:maxResults]
	}
	for i := range scored {
		scored[i].Rank = i + 1
		scored[i].Explanation = explain(scored[i], intent)
	}

	r.logger.Info("Ranked %d packages, top score: %.3f", len(scored), scored[0].TotalScore)
	return models.RankResult{Status: models.RankStatusOK, Results: scored}
}

func (r *Ranker) total(scores map[string]float64) float64 {
	var sum float64
	for _, f := range factorOrder {
		sum += scores[f] * r.weights[f]
	}
	return math.Round(sum*1000) / 1000
}

func destinationScore(p models.Package, intent models.Intent) float64 {
	if len(intent.Destinations) == 0 {
		return neutralScore
	}
	if len(p.Destinations) == 0 {
		return 0
	}
	want := foldSet(intent.Destinations)
	have := foldSet(p.Destinations)

	overlap := 0
	for d := range want {
		if have[d] {
			overlap++
		}
	}
	if overlap == 0 {
		return 0
	}
	if len(have) == len(want) && overlap == len(want) {
		return 1
	}
	return min(float64(overlap)/float64(len(want)), 1)
}

func durationScore(p models.Package, intent models.Intent) float64 {
	if intent.DurationDays <= 0 {
		return neutralScore
	}
	if p.DurationDays <= 0 {
		return 0
	}
	diff := p.DurationDays - intent.DurationDays
	if diff < 0 {
		diff = -diff
	}
	flex := intent.DurationFlexibilityDays
	switch {
	case diff == 0:
		return 1
	case diff <= flex:
		return 1 - float64(diff)/float64(flex+1)*0.2
	case diff >= 2*flex:
		return 0
	default:
		return 1 - float64(diff)/float64(2*flex)
	}
}

// budgetScore keeps the asymmetric curve: anything under budget scores at
// least 0.8, overspend decays piecewise to zero at 50% over.
func budgetScore(p models.Package, intent models.Intent) float64 {
	budget := intent.BudgetPerPerson
	if budget <= 0 {
		return neutralScore
	}
	price := p.PriceINR
	if price <= 0 {
		return 0
	}
	if math.Abs(price-budget)/budget <= 0.05 {
		return 1
	}
	if price < budget {
		return 0.8 + price/budget*0.2
	}
	over := (price - budget) / budget
	switch {
	case over <= 0.10:
		return 0.9 - over*5
	case over <= 0.30:
		return 0.6 - (over-0.10)*2
	case over <= 0.50:
		return 0.3 - (over-0.30)*1.5
	default:
		return 0
	}
}

// trustScore averages agency trust and extraction confidence. An unset
// (zero) value on either side counts as neutral.
func trustScore(agencyTrust, confidence float64) float64 {
	if agencyTrust <= 0 {
		agencyTrust = neutralScore
	}
	if confidence <= 0 {
		confidence = neutralScore
	}
	return (agencyTrust + confidence) / 2
}

func reviewsScore(p models.Package) float64 {
	if p.Rating == nil {
		return neutralScore
	}
	var bonus float64
	switch {
	case p.ReviewsCount >= 100:
		bonus = 0.10
	case p.ReviewsCount >= 50:
		bonus = 0.05
	case p.ReviewsCount >= 10:
		bonus = 0.02
	}
	return min(*p.Rating/5+bonus, 1)
}

func inclusionsScore(p models.Package, intent models.Intent) float64 {
	have := foldSet(p.Inclusions)
	score := min(float64(len(have))/10, 0.7)

	want := foldSet(intent.MustInclude)
	if len(want) > 0 {
		matched := 0
		for tag := range want {
			if have[tag] {
				matched++
			}
		}
		score += float64(matched) / float64(len(want)) * 0.3
	}
	return min(score, 1)
}

func explain(sp models.ScoredPackage, intent models.Intent) []string {
	var (
		p       = sp.Package
		s       = sp.Scores
		reasons []string
	)

	switch {
	case s[FactorDestination] >= 0.8:
		dests := p.Destinations
		if len(dests) > 3 {
			dests = dests[:3]
		}
		reasons = append(reasons, "Excellent destination match for "+strings.Join(dests, ", "))
	case s[FactorDestination] >= 0.5 && len(intent.Destinations) > 0:
		reasons = append(reasons, "Good destination coverage")
	}

	if intent.BudgetPerPerson > 0 && s[FactorBudget] >= 0.8 {
		if p.PriceINR <= intent.BudgetPerPerson {
			reasons = append(reasons, "Within budget at ₹"+formatRupees(p.PriceINR))
		} else {
			reasons = append(reasons, "Slightly over budget but great value")
		}
	}

	if intent.DurationDays > 0 && s[FactorDuration] >= 0.9 {
		if p.DurationDays == intent.DurationDays {
			reasons = append(reasons, fmt.Sprintf("Exact %d-day duration", p.DurationDays))
		} else {
			reasons = append(reasons, fmt.Sprintf("%d days, close to your preferred length", p.DurationDays))
		}
	}

	if s[FactorTrust] >= 0.8 {
		reasons = append(reasons, "Highly trusted agency")
	}

	if p.Rating != nil && s[FactorReviews] >= 0.8 {
		reasons = append(reasons, fmt.Sprintf("Excellent %.1f★ rating", *p.Rating))
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "Matches your criteria")
	}
	return reasons
}

func foldSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			set[v] = true
		}
	}
	return set
}

// formatRupees renders a whole-rupee amount with thousands separators
func formatRupees(v float64) string {
	digits := strconv.FormatInt(int64(math.Round(v)), 10)
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
