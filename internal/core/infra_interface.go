package core

import (
	"context"
	"time"

	"github.com/boediario/boediario/internal/core/sample"
	"github.com/boediario/boediario/internal/models"
)

// LookupAction reports what a catalog upsert did.
type LookupAction string

const (
	LookupInserted    LookupAction = "insert"
	LookupUpdatedName LookupAction = "update_name"
	LookupNoop        LookupAction = "none"
)

// ItemFilter narrows item listings for the serving layer.
type ItemFilter struct {
	Fecha        *time.Time
	Seccion      string
	Departamento string
	Clase        string
	Limit        int
	Offset       int
}

// SummaryMeta is the stored digest state checked before regenerating.
type SummaryMeta struct {
	PromptVersion int
	ResumenTexto  string
}

// DbClient defines all persistence operations the pipeline and the serving
// layer need. It abstracts Postgres so higher layers never depend on a
// specific DB.
type DbClient interface {
	// BeginIngest opens the transaction scope of one ingestion run; all
	// inserts of the run commit together.
	BeginIngest(ctx context.Context) (IngestStore, error)

	GetItem(ctx context.Context, identificador string) (*models.GazetteItem, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]models.GazetteItem, error)
	CountItems(ctx context.Context) (int64, error)
	ListItemsMissingAI(ctx context.Context, limit int) ([]models.GazetteItem, error)
	UpdateItemAI(ctx context.Context, identificador, tituloResumen string, resumen, impacto *string) error

	ListSecciones(ctx context.Context) ([]models.LookupEntry, error)
	ListDepartamentos(ctx context.Context) ([]models.LookupEntry, error)

	GetSummaryMeta(ctx context.Context, fecha time.Time, seccionCodigo string) (*SummaryMeta, error)
	UpsertSectionSummary(ctx context.Context, s *models.DailySectionSummary) error
	GetDailySummaries(ctx context.Context, fecha time.Time) ([]models.DailySectionSummary, error)
	ListSummaryDates(ctx context.Context, limit, offset int) ([]time.Time, error)
	LatestSummaryDate(ctx context.Context) (*time.Time, error)

	// ToggleReaction flips the caller's reaction on an item and returns the
	// fresh aggregate counters.
	ToggleReaction(ctx context.Context, identificador, userID, kind string) (likes, dislikes int, err error)
	ListComments(ctx context.Context, identificador string) ([]models.Comment, error)
	AddComment(ctx context.Context, c *models.Comment) error

	UpdateItemEmbedding(ctx context.Context, identificador string, vec []float32) error
	SearchRelatedItems(ctx context.Context, identificador string, limit int) ([]models.GazetteItem, error)

	Close() error
}

// IngestStore is the transactional surface one ingestion run writes through.
type IngestStore interface {
	ItemExists(ctx context.Context, identificador string) (bool, error)
	InsertItem(ctx context.Context, item *models.GazetteItem) error
	EnsureSeccion(ctx context.Context, codigo, nombre string) (LookupAction, error)
	EnsureDepartamento(ctx context.Context, codigo, nombre string) (LookupAction, error)
	Commit() error
	Rollback() error
}

// Resumen is the structured per-item summary produced by the model.
type Resumen struct {
	Summary        string   `json:"summary"`
	KeyChanges     []string `json:"key_changes"`
	KeyDatesEvents []string `json:"key_dates_events"`
	Conclusion     string   `json:"conclusion"`
}

func (r *Resumen) IsEmpty() bool {
	return r == nil || (r.Summary == "" && len(r.KeyChanges) == 0 &&
		len(r.KeyDatesEvents) == 0 && r.Conclusion == "")
}

// Impacto is the structured per-item impact report.
type Impacto struct {
	Afectados           []string `json:"afectados"`
	CambiosOperativos   []string `json:"cambios_operativos"`
	RiesgosPotenciales  []string `json:"riesgos_potenciales"`
	BeneficiosPrevistos []string `json:"beneficios_previstos"`
	Recomendaciones     []string `json:"recomendaciones"`
}

func (i *Impacto) IsEmpty() bool {
	return i == nil || (len(i.Afectados) == 0 && len(i.CambiosOperativos) == 0 &&
		len(i.RiesgosPotenciales) == 0 && len(i.BeneficiosPrevistos) == 0 &&
		len(i.Recomendaciones) == 0)
}

// ItemRequest carries the source-of-truth text and metadata for one item.
type ItemRequest struct {
	Identificador string
	Titulo        string
	Seccion       string
	Departamento  string
	Body          string
}

// ItemEnrichment is the full AI output for one item.
type ItemEnrichment struct {
	TituloResumen string
	Resumen       *Resumen
	Impacto       *Impacto
}

type TopItem struct {
	Identificador string `json:"identificador"`
	Titulo        string `json:"titulo"`
}

// SectionDigest is the AI output of digest mode, already validated against
// the sample.
type SectionDigest struct {
	Summary       string    `json:"summary"`
	Highlights    []string  `json:"highlights"`
	TopItems      []TopItem `json:"top_items"`
	Model         string    `json:"-"`
	PromptVersion int       `json:"-"`
}

// ItemAI produces per-item title/summary/impact.
type ItemAI interface {
	EnrichItem(ctx context.Context, req ItemRequest) (*ItemEnrichment, error)
}

// DigestAI produces the per-section daily digest.
type DigestAI interface {
	SummarizeSection(ctx context.Context, fecha time.Time, section sample.SectionInput) (*SectionDigest, error)
}

type EmbeddingProvider interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// TextExtractor downloads a PDF and extracts plain text. An empty string
// with a nil error means the document genuinely yielded no text; an error
// means the extraction itself failed.
type TextExtractor interface {
	ExtractPDF(ctx context.Context, identificador, urlPDF string) (string, error)
}

// EnrichRequest points the enricher at the alternate sources of one item.
type EnrichRequest struct {
	Identificador string
	URLHTML       string
	URLPDF        string
	BaseText      string
}

// SourceEnricher tries alternate text sources and returns the best text it
// found plus whether it improved on the base. It never fails: on total
// failure the base text comes back unchanged.
type SourceEnricher interface {
	Enrich(ctx context.Context, req EnrichRequest) (string, bool)
}

// ObjectClient archives raw fetched artifacts (PDF bytes, sumario XML) for
// provenance. The bucket is bound at construction.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	GetFile(ctx context.Context, key string) ([]byte, error)
	DeleteFile(ctx context.Context, key string) error
}
