package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"travel-package-scraper/models"
	"travel-package-scraper/utils"
)

// CSVWriter appends raw extracted listings to a CSV audit file
type CSVWriter struct {
	mu       sync.Mutex
	filePath string
	logger   *utils.Logger
}

var csvHeader = []string{
	"agency", "source_url", "tier", "title", "raw_price", "raw_duration",
	"destinations", "url", "confidence", "scraped_at",
}

// NewCSVWriter creates a new CSVWriter
func NewCSVWriter(filePath string, logger *utils.Logger) *CSVWriter {
	return &CSVWriter{filePath: filePath, logger: logger}
}

// WriteResult appends the raw records of one scrape result. The header is
// written when the file is created.
func (w *CSVWriter) WriteResult(res models.ScrapeResult) error {
	if len(res.Packages) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	_, statErr := os.Stat(w.filePath)
	fresh := os.IsNotExist(statErr)

	file, err := os.OpenFile(w.filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if fresh {
		if err := writer.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	for _, l := range res.Packages {
		confidence := ""
		if l.Confidence != nil {
			confidence = strconv.FormatFloat(*l.Confidence, 'f', 2, 64)
		}
		rawPrice := l.PriceText
		if rawPrice == "" && l.PriceValue > 0 {
			rawPrice = strconv.FormatFloat(l.PriceValue, 'f', -1, 64)
		}
		rawDuration := l.DurationText
		if rawDuration == "" && l.DurationValue > 0 {
			rawDuration = strconv.Itoa(l.DurationValue)
		}
		row := []string{
			res.AgencyName,
			res.URL,
			res.Tier,
			l.Title,
			rawPrice,
			rawDuration,
			strings.Join(l.Destinations, "|"),
			l.URL,
			confidence,
			l.ScrapedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			w.logger.Error("Failed to write CSV row for '%s': %v", l.Title, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	w.logger.Info("Raw listings written to: %s (%d rows)", w.filePath, len(res.Packages))
	return nil
}
