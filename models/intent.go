package models

import "strings"

// Intent is the structured, read-only representation of what a traveler wants
type Intent struct {
	Destinations            []string
	DurationDays            int     // 0 when unspecified
	DurationFlexibilityDays int
	BudgetPerPerson         float64 // 0 when unspecified
	MustInclude             []string
}

// IntentOption customizes an Intent at construction time
type IntentOption func(*Intent)

// WithDuration sets the desired trip length in days
func WithDuration(days int) IntentOption {
	return func(i *Intent) {
		if days > 0 {
			i.DurationDays = days
		}
	}
}

// WithFlexibility overrides the default duration tolerance
func WithFlexibility(days int) IntentOption {
	return func(i *Intent) {
		if days >= 0 {
			i.DurationFlexibilityDays = days
		}
	}
}

// WithBudget sets the per-person budget
func WithBudget(amount float64) IntentOption {
	return func(i *Intent) {
		if amount > 0 {
			i.BudgetPerPerson = amount
		}
	}
}

// WithMustInclude sets required inclusion tags
func WithMustInclude(tags ...string) IntentOption {
	return func(i *Intent) {
		i.MustInclude = dedupFold(tags)
	}
}

// NewIntent builds an Intent with destinations deduplicated case-insensitively
// in first-seen order
func NewIntent(destinations []string, opts ...IntentOption) Intent {
	intent := Intent{
		Destinations:            dedupFold(destinations),
		DurationFlexibilityDays: DefaultFlexibilityDays,
	}
	for _, opt := range opts {
		opt(&intent)
	}
	return intent
}

func dedupFold(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
