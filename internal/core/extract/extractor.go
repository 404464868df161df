// Package extract turns a gazette PDF URL into plain text. Extraction runs
// through docconv first and falls back to a pure-Go PDF reader when docconv
// errors or yields too little text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"

	"github.com/boediario/boediario/internal/config"
	"github.com/boediario/boediario/internal/core"
)

var _ core.TextExtractor = (*Extractor)(nil)

type Extractor struct {
	client       *http.Client
	userAgent    string
	totalBudget  time.Duration
	retries      int
	backoff      float64
	minBytes     int64
	maxBytes     int64
	minTextChars int
	hostFallback bool
	archive      core.ObjectClient // optional, nil disables archiving
	log          *logrus.Entry
}

func NewExtractor(cfg *config.Config, archive core.ObjectClient, log *logrus.Entry) *Extractor {
	return &Extractor{
		client: &http.Client{
			Timeout: cfg.PDFConnectTimeout + cfg.PDFReadTimeout,
		},
		userAgent:    cfg.BOEUserAgent,
		totalBudget:  cfg.PDFTotalBudget,
		retries:      cfg.PDFRetries,
		backoff:      cfg.PDFBackoffFactor,
		minBytes:     cfg.PDFMinBytes,
		maxBytes:     cfg.PDFMaxBytes,
		minTextChars: cfg.PDFMinTextChars,
		hostFallback: cfg.PDFHostFallback,
		archive:      archive,
		log:          log,
	}
}

// ExtractPDF downloads the document and extracts its text. An empty string
// with nil error means no text was recoverable; callers treat that as
// "no content available", not as a failure of the call itself.
func (e *Extractor) ExtractPDF(ctx context.Context, identificador, urlPDF string) (string, error) {
	if urlPDF == "" {
		return "", fmt.Errorf("no url_pdf for %s", identificador)
	}

	data := e.fetchPDF(ctx, urlPDF)
	if data == nil {
		return "", fmt.Errorf("pdf download failed for %s", identificador)
	}

	if e.archive != nil {
		key := fmt.Sprintf("pdf/%s.pdf", identificador)
		if _, err := e.archive.UploadFile(ctx, key, data, "application/pdf"); err != nil {
			e.log.WithError(err).WithField("identificador", identificador).Warn("pdf archive upload failed")
		}
	}

	text, err := e.convertPrimary(data)
	if err == nil && len(text) >= e.minTextChars {
		return text, nil
	}
	if err != nil {
		e.log.WithError(err).WithField("identificador", identificador).Info("primary extraction failed, trying fallback")
	} else {
		e.log.WithFields(logrus.Fields{"identificador": identificador, "chars": len(text)}).Warn("primary extraction too short, trying fallback")
	}

	fbText, fbErr := e.convertFallback(data)
	if fbErr == nil && len(fbText) >= e.minTextChars {
		return fbText, nil
	}
	if fbErr != nil {
		e.log.WithError(fbErr).WithField("identificador", identificador).Warn("fallback extraction failed")
	}

	// Neither extractor reached the threshold; return the longer of the two.
	if len(fbText) > len(text) {
		text = fbText
	}
	return text, nil
}

func (e *Extractor) convertPrimary(data []byte) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), "application/pdf", false)
	if err != nil {
		return "", fmt.Errorf("docconv: %w", err)
	}
	return cleanText(res.Body), nil
}

func (e *Extractor) convertFallback(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	r, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plain text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return cleanText(buf.String()), nil
}

var (
	horizWSRe     = regexp.MustCompile(`[ \t]+`)
	newlineTrimRe = regexp.MustCompile(`\s*\n\s*`)
)

func cleanText(txt string) string {
	txt = horizWSRe.ReplaceAllString(txt, " ")
	txt = newlineTrimRe.ReplaceAllString(txt, "\n")
	return strings.TrimSpace(txt)
}
