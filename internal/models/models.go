package models

import (
	"time"
)

// GazetteItem represents one published entry of the gazette. The natural key
// is Identificador (BOE-<kind>-<year>-<seq>); rows are inserted at most once
// and never updated by the pipeline except for reaction counters and AI
// repair backfills.
type GazetteItem struct {
	Identificador      string     `db:"identificador" json:"identificador"`
	Titulo             string     `db:"titulo" json:"titulo"`
	TituloResumen      string     `db:"titulo_resumen" json:"titulo_resumen"`
	Resumen            *string    `db:"resumen" json:"resumen,omitempty"`          // JSON, stored gzip+base64
	InformeImpacto     *string    `db:"informe_impacto" json:"informe_impacto,omitempty"` // JSON
	URLPDF             string     `db:"url_pdf" json:"url_pdf"`
	URLHTML            string     `db:"url_html" json:"url_html"`
	URLXML             string     `db:"url_xml" json:"url_xml"`
	SeccionCodigo      string     `db:"seccion_codigo" json:"seccion_codigo"`
	SeccionNombre      string     `db:"seccion_nombre" json:"seccion_nombre,omitempty"`
	DepartamentoCodigo string     `db:"departamento_codigo" json:"departamento_codigo"`
	DepartamentoNombre string     `db:"departamento_nombre" json:"departamento_nombre,omitempty"`
	Epigrafe           string     `db:"epigrafe" json:"epigrafe"`
	Control            string     `db:"control" json:"control"`
	FechaPublicacion   *time.Time `db:"fecha_publicacion" json:"fecha_publicacion"`
	ClaseItem          string     `db:"clase_item" json:"clase_item"`
	Likes              int        `db:"likes" json:"likes"`
	Dislikes           int        `db:"dislikes" json:"dislikes"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
}

// Item classes derived from the section name.
const (
	ClaseAnuncio        = "Anuncio"
	ClaseDisposicion    = "Disposición"
	ClaseNotificacion   = "Notificación"
	ClaseEdictoJudicial = "Edicto judicial"
	ClasePersonal       = "Personal"
	ClaseOtrosAnuncios  = "Otros anuncios"
)

// LookupEntry is one row of the departamentos/secciones catalogs.
// Codigo is normalized (leading zeros stripped, empty becomes "0").
type LookupEntry struct {
	Codigo string `db:"codigo" json:"value"`
	Nombre string `db:"nombre" json:"label"`
}

// DailySectionSummary is the persisted AI digest for one (date, section)
// pair, unique on that key. Source* fields keep the exact inputs the model
// saw so a digest can be audited or rebuilt.
type DailySectionSummary struct {
	FechaPublicacion  time.Time `db:"fecha_publicacion" json:"fecha_publicacion"`
	SeccionCodigo     string    `db:"seccion_codigo" json:"codigo"`
	SeccionNombre     string    `db:"seccion_nombre" json:"nombre"`
	TotalEntradas     int       `db:"total_entradas" json:"total_entradas"`
	ResumenTexto      string    `db:"resumen_texto" json:"resumen"`
	ResumenJSON       *string   `db:"resumen_json" json:"resumen_json,omitempty"`
	AIModel           string    `db:"ai_model" json:"-"`
	AIPromptVersion   int       `db:"ai_prompt_version" json:"-"`
	SourceDeptCounts  *string   `db:"source_dept_counts" json:"-"`
	SourceSampleItems *string   `db:"source_sample_items" json:"-"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Comment is a user comment attached to a gazette item.
type Comment struct {
	ID            string    `db:"id" json:"id"`
	Identificador string    `db:"identificador" json:"identificador"`
	UserID        string    `db:"user_id" json:"user_id"`
	Body          string    `db:"body" json:"body"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Reaction kinds. Per-user rows back the toggle semantics; the aggregate
// likes/dislikes counters live on the item row.
const (
	ReactionLike    = "like"
	ReactionDislike = "dislike"
)
