package agency

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"travel-package-scraper/models"
	"travel-package-scraper/utils"
)

// Fetcher returns the HTML of a page
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// maxBodyBytes caps static downloads
const maxBodyBytes = 8 << 20

// StaticFetcher performs a plain HTTP GET with a desktop user agent
type StaticFetcher struct {
	client    *http.Client
	insecure  *http.Client
	userAgent string
	logger    *utils.Logger
}

// NewStaticFetcher creates a StaticFetcher. insecure is used only for the
// single retry after a certificate verification failure.
func NewStaticFetcher(timeout time.Duration, userAgent string, logger *utils.Logger) *StaticFetcher {
	insecureTransport := http.DefaultTransport.(*http.Transport).Clone()
	insecureTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit downgrade, logged
	return &StaticFetcher{
		client:    &http.Client{Timeout: timeout},
		insecure:  &http.Client{Timeout: timeout, Transport: insecureTransport},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Fetch downloads pageURL. On a TLS verification failure it retries exactly
// once without verification and logs the downgrade.
func (f *StaticFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	body, err := f.get(ctx, f.client, pageURL)
	if err == nil {
		return body, nil
	}
	if !isTLSVerificationError(err) {
		return "", classifyFetchError("static fetch failed", err)
	}

	f.logger.Warn("TLS verification failed for %s (%v); retrying once with verification disabled", pageURL, err)
	body, retryErr := f.get(ctx, f.insecure, pageURL)
	if retryErr != nil {
		return "", classifyFetchError("static fetch failed after TLS downgrade",
			fmt.Errorf("%w (original: %v)", retryErr, err))
	}
	return body, nil
}

func (f *StaticFetcher) get(ctx context.Context, client *http.Client, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", models.NewError(models.KindTransientNetwork, fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func isTLSVerificationError(err error) bool {
	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var invalid x509.CertificateInvalidError
	return errors.As(err, &certErr) || errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr) || errors.As(err, &invalid)
}

// classifyFetchError tags timeouts and connection resets as transient
func classifyFetchError(msg string, err error) error {
	if isTransient(err) {
		return models.NewError(models.KindTransientNetwork, msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if models.IsKind(err, models.KindTransientNetwork) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
