package services

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"travel-package-scraper/models"
)

const reportWidth = 60

// PrintInsightReport writes the catalog insight report
func PrintInsightReport(w io.Writer, report *models.InsightReport) {
	thin := strings.Repeat("─", reportWidth)
	banner(w, "TRAVEL PACKAGE CATALOG INSIGHTS")

	fmt.Fprintf(w, "\n OVERVIEW\n%s\n", thin)
	fmt.Fprintf(w, "  Total Packages          : %d\n", report.TotalPackages)
	fmt.Fprintf(w, "  Packages With Price     : %d\n", report.PricedPackages)
	fmt.Fprintf(w, "  Average Price           : ₹%s\n", formatRupees(report.AveragePrice))
	fmt.Fprintf(w, "  Minimum Price           : ₹%s\n", formatRupees(report.MinPrice))
	fmt.Fprintf(w, "  Maximum Price           : ₹%s\n", formatRupees(report.MaxPrice))

	if report.MostExpensive != nil {
		fmt.Fprintf(w, "\n MOST EXPENSIVE PACKAGE\n%s\n", thin)
		fmt.Fprintf(w, "  Title    : %s\n", report.MostExpensive.Title)
		fmt.Fprintf(w, "  Price    : ₹%s\n", formatRupees(report.MostExpensive.PriceINR))
		fmt.Fprintf(w, "  Duration : %d days\n", report.MostExpensive.DurationDays)
		fmt.Fprintf(w, "  URL      : %s\n", report.MostExpensive.URL)
	}

	if len(report.PackagesByDestination) > 0 {
		fmt.Fprintf(w, "\n PACKAGES PER DESTINATION\n%s\n", thin)
		type destCount struct {
			dest  string
			count int
		}
		var dests []destCount
		for d, c := range report.PackagesByDestination {
			dests = append(dests, destCount{d, c})
		}
		sort.Slice(dests, func(i, j int) bool {
			if dests[i].count != dests[j].count {
				return dests[i].count > dests[j].count
			}
			return dests[i].dest < dests[j].dest
		})
		for _, dc := range dests {
			fmt.Fprintf(w, "  %-25s %3d  %s\n", dc.dest+":", dc.count, strings.Repeat("▓", dc.count))
		}
	}

	if len(report.TopRated) > 0 {
		fmt.Fprintf(w, "\n TOP %d HIGHEST RATED PACKAGES\n%s\n", len(report.TopRated), thin)
		for i, p := range report.TopRated {
			fmt.Fprintf(w, "  %d. %-40s %.1f★\n", i+1, truncate(p.Title, 40), *p.Rating)
		}
	}

	fmt.Fprintf(w, "\n%s\n\n", strings.Repeat("═", reportWidth))
}

// PrintRunSummary writes the per-agency outcome of an ingestion run
func PrintRunSummary(w io.Writer, summary *models.RunSummary) {
	thin := strings.Repeat("─", reportWidth)
	banner(w, "INGESTION RUN "+summary.JobID[:min(8, len(summary.JobID))])

	fmt.Fprintf(w, "\n AGENCIES\n%s\n", thin)
	for _, a := range summary.Agencies {
		switch {
		case a.Skipped:
			fmt.Fprintf(w, "  %-28s skipped (cooldown)\n", truncate(a.Agency.Name, 28))
		case !a.Success:
			fmt.Fprintf(w, "  %-28s FAILED [%s] %s\n", truncate(a.Agency.Name, 28), a.Mode, a.Error)
		default:
			fmt.Fprintf(w, "  %-28s %3d found  %3d new  %3d dup  [%s/%s]\n",
				truncate(a.Agency.Name, 28), a.Found, a.Inserted, a.Duplicates, a.Mode, a.Tier)
		}
	}

	found, normalized, inserted, failed := summary.Totals()
	fmt.Fprintf(w, "\n TOTALS\n%s\n", thin)
	fmt.Fprintf(w, "  Raw Records             : %d\n", found)
	fmt.Fprintf(w, "  Normalized              : %d\n", normalized)
	fmt.Fprintf(w, "  Stored                  : %d\n", inserted)
	fmt.Fprintf(w, "  Failed Agencies         : %d\n", failed)
	fmt.Fprintf(w, "  Elapsed                 : %s\n", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "\n%s\n\n", strings.Repeat("═", reportWidth))
}

// PrintRankResult writes ranked packages with their explanations
func PrintRankResult(w io.Writer, result models.RankResult) {
	thin := strings.Repeat("─", reportWidth)
	banner(w, "TOP MATCHING PACKAGES")

	if result.Status == models.RankStatusNoMatches {
		fmt.Fprintf(w, "\n  No packages matched your trip.\n\n")
		return
	}

	for _, sp := range result.Results {
		p := sp.Package
		fmt.Fprintf(w, "\n %d. %s  (score %.3f)\n%s\n", sp.Rank, p.Title, sp.TotalScore, thin)
		fmt.Fprintf(w, "  Price    : ₹%s\n", formatRupees(p.PriceINR))
		fmt.Fprintf(w, "  Duration : %d days / %d nights\n", p.DurationDays, p.DurationNights)
		fmt.Fprintf(w, "  Places   : %s\n", strings.Join(p.Destinations, ", "))
		if p.URL != "" {
			fmt.Fprintf(w, "  URL      : %s\n", p.URL)
		}
		fmt.Fprintf(w, "  Why      : %s\n", strings.Join(sp.Explanation, "; "))
	}
	fmt.Fprintf(w, "\n%s\n\n", strings.Repeat("═", reportWidth))
}

func banner(w io.Writer, title string) {
	border := strings.Repeat("═", reportWidth)
	fmt.Fprintf(w, "\n╔%s╗\n", border)
	fmt.Fprintf(w, "║%s║\n", center(title, reportWidth))
	fmt.Fprintf(w, "╚%s╝\n", border)
}

func center(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return s
	}
	pad := (width - len(runes)) / 2
	return strings.Repeat(" ", pad) + s + strings.Repeat(" ", width-len(runes)-pad)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
