package sumario

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/boediario/boediario/internal/config"
)

// ErrNotPublished signals the expected 404: the gazette has no issue for
// the requested date. Callers end the run cleanly on it.
var ErrNotPublished = errors.New("sumario not published for date")

const compactDate = "20060102"

// Fetcher retrieves the daily sumario over HTTP.
type Fetcher struct {
	client    *http.Client
	baseURL   string
	accept    string
	userAgent string
	retries   int
	backoff   float64
	log       *logrus.Entry
}

func NewFetcher(cfg *config.Config, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.BOEConnectTimeout + cfg.BOEReadTimeout,
		},
		baseURL:   cfg.BOEBaseURL,
		accept:    cfg.BOEAccept,
		userAgent: cfg.BOEUserAgent,
		retries:   cfg.BOETotalRetries,
		backoff:   cfg.BOEBackoffFactor,
		log:       log,
	}
}

// FetchDay downloads and parses the sumario for the given date. A 404 maps
// to ErrNotPublished; other HTTP, network and parse failures are real errors
// and the caller decides whether the run aborts.
func (f *Fetcher) FetchDay(ctx context.Context, day time.Time) (*Document, error) {
	dateStr := day.Format(compactDate)
	url := strings.ReplaceAll(f.baseURL, "{date}", dateStr)

	f.log.WithFields(logrus.Fields{"date": dateStr, "url": url}).Info("fetching sumario")

	body, err := f.getWithRetry(ctx, url)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty sumario response for %s", dateStr)
	}
	if !bytes.HasPrefix(trimmed, []byte("<")) {
		return nil, fmt.Errorf("non-XML sumario response for %s (%d bytes)", dateStr, len(body))
	}

	doc, err := Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sumario %s: %w", dateStr, err)
	}
	doc.Fecha = day
	return doc, nil
}

func (f *Fetcher) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			sleepBackoff(ctx, f.backoff, attempt)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", f.accept)
		req.Header.Set("User-Agent", f.userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			f.log.WithError(err).WithField("attempt", attempt).Warn("sumario request failed")
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNotPublished
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
			f.log.WithField("status", resp.StatusCode).WithField("attempt", attempt).Warn("retryable sumario status")
			continue
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}
		return body, nil
	}
	return nil, fmt.Errorf("sumario fetch exhausted retries: %w", lastErr)
}

// sleepBackoff waits factor * 2^(attempt-1) seconds with a small jitter,
// honoring context cancellation.
func sleepBackoff(ctx context.Context, factor float64, attempt int) {
	d := time.Duration(factor * math.Pow(2, float64(attempt-1)) * float64(time.Second))
	d += time.Duration(rand.Int63n(int64(250 * time.Millisecond)))
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
