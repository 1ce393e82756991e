package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	priceRegex      = regexp.MustCompile(`(?i)(?:₹|\brs\.?|\binr)\s*([\d,]+(?:\.\d{1,2})?)`)
	nightsDaysRegex = regexp.MustCompile(`(?i)(\d{1,2})\s*n\s*/\s*(\d{1,2})\s*d\b`)
	daysRegex       = regexp.MustCompile(`(?i)(\d{1,2})\s*(?:days?|d)\b`)
	nightsRegex     = regexp.MustCompile(`(?i)(\d{1,2})\s*(?:nights?|n)\b`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

var packageKeywords = []string{
	"tour", "trip", "package", "trek", "camp", "holiday", "travel",
	"expedition", "getaway", "manali", "goa", "kashmir", "ladakh", "jaipur", "shimla",
}

var knownDestinations = []string{
	"Manali", "Kasol", "Jaipur", "Udaipur", "Jodhpur", "Goa", "Delhi", "Shimla",
	"Kullu", "Amritsar", "Dubai", "Abu Dhabi", "Kerala", "Rishikesh", "Leh",
	"Ladakh", "Kashmir", "Agra", "Spiti", "Andaman", "Darjeeling", "Sikkim",
}

// looksLikePackageTitle is the keyword test used to reject navigation text
func looksLikePackageTitle(title string) bool {
	t := strings.ToLower(title)
	for _, k := range packageKeywords {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}

// findPrice returns the first currency-prefixed amount in text, or "" when none
func findPrice(text string) string {
	m := priceRegex.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

// findDuration reads "4N/5D", "5 Days" or "4 Nights" and returns days
func findDuration(text string) int {
	if m := nightsDaysRegex.FindStringSubmatch(text); len(m) == 3 {
		n, _ := strconv.Atoi(m[2])
		return n
	}
	if m := daysRegex.FindStringSubmatch(text); len(m) == 2 {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if m := nightsRegex.FindStringSubmatch(text); len(m) == 2 {
		n, _ := strconv.Atoi(m[1])
		if n > 0 {
			return n + 1
		}
	}
	return 0
}

func guessDestinations(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, place := range knownDestinations {
		if strings.Contains(lower, strings.ToLower(place)) {
			found = append(found, place)
		}
	}
	return found
}

// resolveURL resolves href against the page URL. Fragment-only and
// javascript: links resolve to "".
func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref.String()
	}
	return b.ResolveReference(ref).String()
}

func collapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}
