package services

import (
	"sort"

	"travel-package-scraper/models"
	"travel-package-scraper/utils"
)

const topRatedCount = 5

// InsightService computes catalog statistics over a package set
type InsightService struct {
	logger *utils.Logger
}

// NewInsightService creates a new InsightService
func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate computes price, destination and rating statistics for pkgs
func (s *InsightService) Generate(pkgs []models.Package) *models.InsightReport {
	report := &models.InsightReport{
		PackagesByDestination: make(map[string]int),
	}

	if len(pkgs) == 0 {
		s.logger.Warn("No packages to generate insights from")
		return report
	}

	var totalPrice float64
	for i, p := range pkgs {
		report.TotalPackages++

		if p.PriceINR > 0 {
			report.PricedPackages++
			totalPrice += p.PriceINR
			if report.MinPrice == 0 || p.PriceINR < report.MinPrice {
				report.MinPrice = p.PriceINR
			}
			if p.PriceINR > report.MaxPrice {
				report.MaxPrice = p.PriceINR
				report.MostExpensive = &pkgs[i]
			}
		}

		for _, d := range p.Destinations {
			report.PackagesByDestination[d]++
		}
	}

	if report.PricedPackages > 0 {
		report.AveragePrice = totalPrice / float64(report.PricedPackages)
	}

	rated := make([]models.Package, 0, len(pkgs))
	for _, p := range pkgs {
		if p.Rating != nil {
			rated = append(rated, p)
		}
	}
	sort.SliceStable(rated, func(i, j int) bool {
		return *rated[i].Rating > *rated[j].Rating
	})
	report.TopRated = rated[:min(topRatedCount, len(rated))]

	return report
}
