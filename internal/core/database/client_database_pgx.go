// Package db implements the persistence layer on Postgres via the pgx
// stdlib driver.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/boediario/boediario/internal/config"
	"github.com/boediario/boediario/internal/core"
	"github.com/boediario/boediario/internal/models"
	"github.com/boediario/boediario/internal/utils"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

const itemColumns = `
	i.identificador, i.titulo, i.titulo_resumen, i.resumen, i.informe_impacto,
	i.url_pdf, i.url_html, i.url_xml,
	i.seccion_codigo, COALESCE(s.nombre, ''),
	i.departamento_codigo, COALESCE(d.nombre, ''),
	i.epigrafe, i.control, i.fecha_publicacion, i.clase_item,
	i.likes, i.dislikes, i.created_at`

const itemFrom = `
	FROM boe_items i
	LEFT JOIN secciones s ON s.codigo = i.seccion_codigo
	LEFT JOIN departamentos d ON d.codigo = i.departamento_codigo`

func scanItem(row interface{ Scan(...any) error }) (*models.GazetteItem, error) {
	var it models.GazetteItem
	err := row.Scan(
		&it.Identificador, &it.Titulo, &it.TituloResumen, &it.Resumen, &it.InformeImpacto,
		&it.URLPDF, &it.URLHTML, &it.URLXML,
		&it.SeccionCodigo, &it.SeccionNombre,
		&it.DepartamentoCodigo, &it.DepartamentoNombre,
		&it.Epigrafe, &it.Control, &it.FechaPublicacion, &it.ClaseItem,
		&it.Likes, &it.Dislikes, &it.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := inflateItemJSON(&it); err != nil {
		return nil, err
	}
	return &it, nil
}

// inflateItemJSON turns the stored compressed blobs back into plain JSON so
// callers never see the storage encoding.
func inflateItemJSON(it *models.GazetteItem) error {
	if it.Resumen != nil {
		plain, err := utils.DecompressText(*it.Resumen)
		if err != nil {
			return fmt.Errorf("resumen of %s: %w", it.Identificador, err)
		}
		it.Resumen = &plain
	}
	if it.InformeImpacto != nil {
		plain, err := utils.DecompressText(*it.InformeImpacto)
		if err != nil {
			return fmt.Errorf("informe_impacto of %s: %w", it.Identificador, err)
		}
		it.InformeImpacto = &plain
	}
	return nil
}

func (c *DatabaseClient) GetItem(ctx context.Context, identificador string) (*models.GazetteItem, error) {
	q := `SELECT` + itemColumns + itemFrom + ` WHERE i.identificador = $1`
	it, err := scanItem(c.db.QueryRowContext(ctx, q, identificador))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return it, err
}

func (c *DatabaseClient) ListItems(ctx context.Context, filter core.ItemFilter) ([]models.GazetteItem, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Fecha != nil {
		add("i.fecha_publicacion = $%d", *filter.Fecha)
	}
	if filter.Seccion != "" {
		add("i.seccion_codigo = $%d", utils.NormalizeCode(filter.Seccion))
	}
	if filter.Departamento != "" {
		add("i.departamento_codigo = $%d", utils.NormalizeCode(filter.Departamento))
	}
	if filter.Clase != "" {
		add("i.clase_item = $%d", filter.Clase)
	}

	q := `SELECT` + itemColumns + itemFrom
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY i.fecha_publicacion DESC, i.identificador"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.GazetteItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) CountItems(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM boe_items`).Scan(&n)
	return n, err
}

func (c *DatabaseClient) ListItemsMissingAI(ctx context.Context, limit int) ([]models.GazetteItem, error) {
	q := `SELECT` + itemColumns + itemFrom + `
		WHERE i.resumen IS NULL OR i.informe_impacto IS NULL OR i.titulo_resumen = ''
		ORDER BY i.created_at
		LIMIT $1`
	rows, err := c.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.GazetteItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateItemAI(ctx context.Context, identificador, tituloResumen string, resumen, impacto *string) error {
	const q = `
		UPDATE boe_items
		SET titulo_resumen = $2, resumen = $3, informe_impacto = $4
		WHERE identificador = $1`
	res, err := c.db.ExecContext(ctx, q, identificador, tituloResumen, resumen, impacto)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("item not found: %s", identificador)
	}
	return nil
}

func (c *DatabaseClient) ListSecciones(ctx context.Context) ([]models.LookupEntry, error) {
	return c.listLookup(ctx, "secciones")
}

func (c *DatabaseClient) ListDepartamentos(ctx context.Context) ([]models.LookupEntry, error) {
	return c.listLookup(ctx, "departamentos")
}

func (c *DatabaseClient) listLookup(ctx context.Context, table string) ([]models.LookupEntry, error) {
	rows, err := c.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT codigo, nombre FROM %s ORDER BY nombre`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LookupEntry
	for rows.Next() {
		var e models.LookupEntry
		if err := rows.Scan(&e.Codigo, &e.Nombre); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) GetSummaryMeta(ctx context.Context, fecha time.Time, seccionCodigo string) (*core.SummaryMeta, error) {
	const q = `
		SELECT ai_prompt_version, resumen_texto
		FROM daily_section_summaries
		WHERE fecha_publicacion = $1 AND seccion_codigo = $2`
	var m core.SummaryMeta
	err := c.db.QueryRowContext(ctx, q, fecha, seccionCodigo).Scan(&m.PromptVersion, &m.ResumenTexto)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *DatabaseClient) UpsertSectionSummary(ctx context.Context, s *models.DailySectionSummary) error {
	if s == nil {
		return errors.New("nil summary")
	}
	const q = `
		INSERT INTO daily_section_summaries
			(fecha_publicacion, seccion_codigo, seccion_nombre, total_entradas,
			 resumen_texto, resumen_json, ai_model, ai_prompt_version,
			 source_dept_counts, source_sample_items, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (fecha_publicacion, seccion_codigo) DO UPDATE SET
			seccion_nombre      = EXCLUDED.seccion_nombre,
			total_entradas      = EXCLUDED.total_entradas,
			resumen_texto       = EXCLUDED.resumen_texto,
			resumen_json        = EXCLUDED.resumen_json,
			ai_model            = EXCLUDED.ai_model,
			ai_prompt_version   = EXCLUDED.ai_prompt_version,
			source_dept_counts  = EXCLUDED.source_dept_counts,
			source_sample_items = EXCLUDED.source_sample_items,
			updated_at          = now()`
	_, err := c.db.ExecContext(ctx, q,
		s.FechaPublicacion, s.SeccionCodigo, s.SeccionNombre, s.TotalEntradas,
		s.ResumenTexto, s.ResumenJSON, s.AIModel, s.AIPromptVersion,
		s.SourceDeptCounts, s.SourceSampleItems)
	return err
}

func (c *DatabaseClient) GetDailySummaries(ctx context.Context, fecha time.Time) ([]models.DailySectionSummary, error) {
	const q = `
		SELECT fecha_publicacion, seccion_codigo, seccion_nombre, total_entradas,
		       resumen_texto, resumen_json, ai_model, ai_prompt_version,
		       source_dept_counts, source_sample_items, updated_at
		FROM daily_section_summaries
		WHERE fecha_publicacion = $1
		ORDER BY seccion_codigo`
	rows, err := c.db.QueryContext(ctx, q, fecha)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DailySectionSummary
	for rows.Next() {
		var s models.DailySectionSummary
		if err := rows.Scan(
			&s.FechaPublicacion, &s.SeccionCodigo, &s.SeccionNombre, &s.TotalEntradas,
			&s.ResumenTexto, &s.ResumenJSON, &s.AIModel, &s.AIPromptVersion,
			&s.SourceDeptCounts, &s.SourceSampleItems, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) ListSummaryDates(ctx context.Context, limit, offset int) ([]time.Time, error) {
	const q = `
		SELECT DISTINCT fecha_publicacion
		FROM daily_section_summaries
		ORDER BY fecha_publicacion DESC
		LIMIT $1 OFFSET $2`
	rows, err := c.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) LatestSummaryDate(ctx context.Context) (*time.Time, error) {
	var d sql.NullTime
	err := c.db.QueryRowContext(ctx,
		`SELECT max(fecha_publicacion) FROM daily_section_summaries`).Scan(&d)
	if err != nil {
		return nil, err
	}
	if !d.Valid {
		return nil, nil
	}
	return &d.Time, nil
}

// ToggleReaction applies like/dislike toggle semantics for one user on one
// item inside a transaction: same kind again removes it, the other kind
// switches it. Returns the refreshed counters.
func (c *DatabaseClient) ToggleReaction(ctx context.Context, identificador, userID, kind string) (int, int, error) {
	if kind != models.ReactionLike && kind != models.ReactionDislike {
		return 0, 0, fmt.Errorf("invalid reaction kind: %q", kind)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT kind FROM reactions WHERE identificador = $1 AND user_id = $2 FOR UPDATE`,
		identificador, userID).Scan(&existing)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reactions (identificador, user_id, kind) VALUES ($1, $2, $3)`,
			identificador, userID, kind); err != nil {
			return 0, 0, err
		}
		if err := bumpCounter(ctx, tx, identificador, kind, +1); err != nil {
			return 0, 0, err
		}
	case err != nil:
		return 0, 0, err
	case existing == kind:
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM reactions WHERE identificador = $1 AND user_id = $2`,
			identificador, userID); err != nil {
			return 0, 0, err
		}
		if err := bumpCounter(ctx, tx, identificador, kind, -1); err != nil {
			return 0, 0, err
		}
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE reactions SET kind = $3 WHERE identificador = $1 AND user_id = $2`,
			identificador, userID, kind); err != nil {
			return 0, 0, err
		}
		if err := bumpCounter(ctx, tx, identificador, existing, -1); err != nil {
			return 0, 0, err
		}
		if err := bumpCounter(ctx, tx, identificador, kind, +1); err != nil {
			return 0, 0, err
		}
	}

	var likes, dislikes int
	if err := tx.QueryRowContext(ctx,
		`SELECT likes, dislikes FROM boe_items WHERE identificador = $1`,
		identificador).Scan(&likes, &dislikes); err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return likes, dislikes, nil
}

func bumpCounter(ctx context.Context, tx *sql.Tx, identificador, kind string, delta int) error {
	col := "likes"
	if kind == models.ReactionDislike {
		col = "dislikes"
	}
	q := fmt.Sprintf(
		`UPDATE boe_items SET %s = GREATEST(%s + $2, 0) WHERE identificador = $1`, col, col)
	res, err := tx.ExecContext(ctx, q, identificador, delta)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("item not found: %s", identificador)
	}
	return nil
}

func (c *DatabaseClient) ListComments(ctx context.Context, identificador string) ([]models.Comment, error) {
	const q = `
		SELECT id, identificador, user_id, body, created_at
		FROM comments
		WHERE identificador = $1
		ORDER BY created_at DESC`
	rows, err := c.db.QueryContext(ctx, q, identificador)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Comment
	for rows.Next() {
		var cm models.Comment
		if err := rows.Scan(&cm.ID, &cm.Identificador, &cm.UserID, &cm.Body, &cm.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, cm)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) AddComment(ctx context.Context, cm *models.Comment) error {
	if cm == nil {
		return errors.New("nil comment")
	}
	const q = `
		INSERT INTO comments (id, identificador, user_id, body, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))`
	_, err := c.db.ExecContext(ctx, q, cm.ID, cm.Identificador, cm.UserID, cm.Body, cm.CreatedAt)
	return err
}

func (c *DatabaseClient) UpdateItemEmbedding(ctx context.Context, identificador string, vec []float32) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE boe_items SET embedding = $2 WHERE identificador = $1`,
		identificador, pgvector.NewVector(vec))
	return err
}

// SearchRelatedItems finds the nearest items by embedding distance,
// excluding the item itself and rows without an embedding.
func (c *DatabaseClient) SearchRelatedItems(ctx context.Context, identificador string, limit int) ([]models.GazetteItem, error) {
	q := `SELECT` + itemColumns + itemFrom + `
		WHERE i.identificador <> $1
		  AND i.embedding IS NOT NULL
		ORDER BY i.embedding <-> (SELECT embedding FROM boe_items WHERE identificador = $1)
		LIMIT $2`
	rows, err := c.db.QueryContext(ctx, q, identificador, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.GazetteItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}
