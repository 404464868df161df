package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// flipWWW toggles the www. prefix of the host. boe.es occasionally serves
// one hostname better than the other, so both are tried.
func flipWWW(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	host := strings.ToLower(u.Host)
	if strings.HasPrefix(host, "www.") {
		u.Host = host[4:]
	} else {
		u.Host = "www." + host
	}
	return u.String()
}

func looksLikePDF(contentType string, head []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	return bytes.HasPrefix(head, []byte("%PDF"))
}

// fetchPDF downloads the PDF with a total time budget, size caps and a
// bounded number of attempts alternating between the original and the
// www-flipped host. Returns nil when no valid PDF could be obtained.
func (e *Extractor) fetchPDF(ctx context.Context, urlPDF string) []byte {
	deadline := time.Now().Add(e.totalBudget)

	candidates := []string{urlPDF}
	if e.hostFallback {
		if alt := flipWWW(urlPDF); alt != urlPDF {
			candidates = append(candidates, alt)
		}
	}

	attempt := 0
	for time.Now().Before(deadline) && attempt < 2*(e.retries+1) {
		for _, u := range candidates {
			if time.Now().After(deadline) || ctx.Err() != nil {
				return nil
			}
			data, err := e.downloadOnce(ctx, u, deadline)
			if err == nil {
				if u != urlPDF {
					e.log.WithField("url", u).Info("pdf downloaded via alternate host")
				}
				return data
			}
			e.log.WithError(err).WithField("url", u).Debug("pdf download attempt failed")
			attempt++
			sleepJitterBackoff(ctx, e.backoff, attempt, deadline)
		}
	}
	return nil
}

func (e *Extractor) downloadOnce(ctx context.Context, urlPDF string, deadline time.Time) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlPDF, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "application/pdf,application/octet-stream;q=0.9,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	// Validate the prefix before committing to the full read.
	head := make([]byte, 1024)
	n, _ := io.ReadFull(resp.Body, head)
	head = head[:n]
	if !looksLikePDF(resp.Header.Get("Content-Type"), head) {
		return nil, fmt.Errorf("response is not a PDF (Content-Type=%q)", resp.Header.Get("Content-Type"))
	}

	buf := bytes.NewBuffer(head)
	for int64(buf.Len()) <= e.maxBytes {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("download budget exhausted")
		}
		chunk := make([]byte, 64*1024)
		m, rerr := resp.Body.Read(chunk)
		if m > 0 {
			buf.Write(chunk[:m])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, rerr
		}
	}
	if int64(buf.Len()) > e.maxBytes {
		return nil, fmt.Errorf("PDF exceeds max bytes (%d > %d)", buf.Len(), e.maxBytes)
	}
	if int64(buf.Len()) < e.minBytes {
		return nil, fmt.Errorf("PDF too small (%d bytes), likely truncated", buf.Len())
	}
	return buf.Bytes(), nil
}

// sleepJitterBackoff waits factor * 1.8^attempt seconds with jitter, capped
// at 8s and cut short by the budget deadline or context cancellation.
func sleepJitterBackoff(ctx context.Context, factor float64, attempt int, deadline time.Time) {
	base := factor * math.Pow(1.8, float64(attempt))
	jitter := 0.85 + 0.3*rand.Float64()
	secs := math.Max(0.6, math.Min(base*jitter, 8.0))
	d := time.Duration(secs * float64(time.Second))
	if remaining := time.Until(deadline); d > remaining {
		d = remaining
	}
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
