// Package llm talks to Gemini for the per-item enrichment and the daily
// section digest. Every structured call pins a response schema so the model
// can only answer in the expected JSON shape.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/boediario/boediario/internal/config"
	"github.com/boediario/boediario/internal/core"
	"github.com/boediario/boediario/internal/core/sample"
)

var (
	_ core.ItemAI   = (*Client)(nil)
	_ core.DigestAI = (*Client)(nil)
)

// CallError carries which call against which model failed; callers decide
// whether the item is skipped or the run aborts.
type CallError struct {
	Op    string
	Model string
	Err   error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("ai %s (%s): %v", e.Op, e.Model, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

type Client struct {
	client        *genai.Client
	modelTitle    string
	modelSummary  string
	modelImpact   string
	modelDaily    string
	timeout       time.Duration
	budget        time.Duration
	maxRetries    int
	backoffBase   float64
	promptVersion int
	disabled      bool
	log           *logrus.Entry
}

func NewClient(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*Client, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.AIAPIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Client{
		client:        cl,
		modelTitle:    cfg.ModelTitle,
		modelSummary:  cfg.ModelSummary,
		modelImpact:   cfg.ModelImpact,
		modelDaily:    cfg.ModelDaily,
		timeout:       cfg.AITimeout,
		budget:        cfg.AIBudget,
		maxRetries:    cfg.AIMaxRetries,
		backoffBase:   cfg.AIBackoffBase,
		promptVersion: cfg.PromptVersion,
		disabled:      cfg.AIDisabled,
		log:           log,
	}, nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// EnrichItem runs the three per-item calls (title, summary, impact) under
// one shared time budget.
func (c *Client) EnrichItem(ctx context.Context, req core.ItemRequest) (*core.ItemEnrichment, error) {
	if c.disabled {
		c.log.Warn("ai disabled, returning empty enrichment")
		return &core.ItemEnrichment{Resumen: &core.Resumen{}, Impacto: &core.Impacto{}}, nil
	}

	deadline := time.Now().Add(c.budget)
	content := normalizeContent(req.Body)
	hints := extractHints(content)
	hasDates := detectHasDates(content)

	rawTitle, err := c.generateText(ctx, c.modelTitle, titleSystem,
		buildTitlePrompt(req.Titulo), 40, 0.2, deadline)
	if err != nil {
		return nil, &CallError{Op: "title", Model: c.modelTitle, Err: err}
	}
	titulo := gradeTitle(rawTitle, 10)

	var resumen core.Resumen
	if err := c.generateJSON(ctx, c.modelSummary, resumenSchema(), resumenSystem,
		buildResumenPrompt(content, hints, hasDates), 900, 0.1, deadline, &resumen); err != nil {
		return nil, &CallError{Op: "resumen", Model: c.modelSummary, Err: err}
	}
	resumen.Summary = collapseWS(resumen.Summary)
	resumen.KeyChanges = sanitizeList(resumen.KeyChanges)
	resumen.KeyDatesEvents = sanitizeList(resumen.KeyDatesEvents)
	resumen.Conclusion = collapseWS(resumen.Conclusion)

	var impacto core.Impacto
	if err := c.generateJSON(ctx, c.modelImpact, impactoSchema(), impactoSystem,
		buildImpactoPrompt(content, hints), 900, 0.1, deadline, &impacto); err != nil {
		return nil, &CallError{Op: "impacto", Model: c.modelImpact, Err: err}
	}
	impacto.Afectados = sanitizeList(impacto.Afectados)
	impacto.CambiosOperativos = sanitizeList(impacto.CambiosOperativos)
	impacto.RiesgosPotenciales = sanitizeList(impacto.RiesgosPotenciales)
	impacto.BeneficiosPrevistos = sanitizeList(impacto.BeneficiosPrevistos)
	impacto.Recomendaciones = sanitizeList(impacto.Recomendaciones)

	return &core.ItemEnrichment{
		TituloResumen: titulo,
		Resumen:       &resumen,
		Impacto:       &impacto,
	}, nil
}

// SummarizeSection produces the digest for one section of one day. The raw
// model output is validated against the sample before it leaves this package.
func (c *Client) SummarizeSection(ctx context.Context, fecha time.Time, section sample.SectionInput) (*core.SectionDigest, error) {
	if c.disabled {
		return nil, &CallError{Op: "digest", Model: c.modelDaily, Err: fmt.Errorf("ai disabled")}
	}

	deadline := time.Now().Add(c.budget)
	var raw core.SectionDigest
	if err := c.generateJSON(ctx, c.modelDaily, digestSchema(), digestSystem,
		buildDigestPrompt(fecha, section), 900, 0.2, deadline, &raw); err != nil {
		return nil, &CallError{Op: "digest", Model: c.modelDaily, Err: err}
	}

	out := validateDigest(&raw, section)
	out.Model = c.modelDaily
	out.PromptVersion = c.promptVersion
	return out, nil
}

func (c *Client) generateText(ctx context.Context, modelName, system, user string,
	maxTokens int32, temperature float32, deadline time.Time) (string, error) {

	m := c.client.GenerativeModel(modelName)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	m.SetMaxOutputTokens(maxTokens)
	m.SetTemperature(temperature)

	resp, err := c.callWithRetry(ctx, m, user, deadline)
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

func (c *Client) generateJSON(ctx context.Context, modelName string, schema *genai.Schema,
	system, user string, maxTokens int32, temperature float32, deadline time.Time, out any) error {

	m := c.client.GenerativeModel(modelName)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	m.SetMaxOutputTokens(maxTokens)
	m.SetTemperature(temperature)
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = schema

	resp, err := c.callWithRetry(ctx, m, user, deadline)
	if err != nil {
		return err
	}
	text := cleanCodeBlock(responseText(resp))
	if text == "" {
		return fmt.Errorf("empty model response")
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode model json: %w", err)
	}
	return nil
}

func (c *Client) callWithRetry(ctx context.Context, m *genai.GenerativeModel,
	user string, deadline time.Time) (*genai.GenerateContentResponse, error) {

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if time.Now().After(deadline) {
			if lastErr != nil {
				return nil, fmt.Errorf("ai budget exhausted: %w", lastErr)
			}
			return nil, fmt.Errorf("ai budget exhausted")
		}
		if attempt > 0 {
			c.sleepBackoff(ctx, attempt, deadline)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := m.GenerateContent(callCtx, genai.Text(user))
		cancel()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		c.log.WithError(err).WithField("attempt", attempt).Warn("ai call failed")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// sleepBackoff waits backoffBase^attempt seconds with jitter, clamped to
// [0.5s, 20s] and never past the budget deadline.
func (c *Client) sleepBackoff(ctx context.Context, attempt int, deadline time.Time) {
	secs := math.Pow(c.backoffBase, float64(attempt)) * (0.85 + 0.3*rand.Float64())
	secs = math.Max(0.5, math.Min(secs, 20.0))
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

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}
