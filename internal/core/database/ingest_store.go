package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/boediario/boediario/internal/core"
	"github.com/boediario/boediario/internal/models"
	"github.com/boediario/boediario/internal/utils"
)

// ingestStore is the write surface of one ingestion run. Everything the run
// writes rides on a single transaction; a failed run leaves no partial rows.
type ingestStore struct {
	tx *sql.Tx
}

var _ core.IngestStore = (*ingestStore)(nil)

func (c *DatabaseClient) BeginIngest(ctx context.Context) (core.IngestStore, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin ingest tx: %w", err)
	}
	return &ingestStore{tx: tx}, nil
}

func (s *ingestStore) ItemExists(ctx context.Context, identificador string) (bool, error) {
	var exists bool
	err := s.tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM boe_items WHERE identificador = $1)`,
		identificador).Scan(&exists)
	return exists, err
}

func (s *ingestStore) InsertItem(ctx context.Context, item *models.GazetteItem) error {
	if item == nil {
		return errors.New("nil item")
	}
	const q = `
		INSERT INTO boe_items
			(identificador, titulo, titulo_resumen, resumen, informe_impacto,
			 url_pdf, url_html, url_xml,
			 seccion_codigo, departamento_codigo, epigrafe, control,
			 fecha_publicacion, clase_item)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := s.tx.ExecContext(ctx, q,
		item.Identificador, item.Titulo, item.TituloResumen, item.Resumen, item.InformeImpacto,
		item.URLPDF, item.URLHTML, item.URLXML,
		utils.NormalizeCode(item.SeccionCodigo), utils.NormalizeCode(item.DepartamentoCodigo),
		item.Epigrafe, item.Control, item.FechaPublicacion, item.ClaseItem)
	return err
}

func (s *ingestStore) EnsureSeccion(ctx context.Context, codigo, nombre string) (core.LookupAction, error) {
	return s.ensureLookup(ctx, "secciones", codigo, nombre)
}

func (s *ingestStore) EnsureDepartamento(ctx context.Context, codigo, nombre string) (core.LookupAction, error) {
	return s.ensureLookup(ctx, "departamentos", codigo, nombre)
}

// ensureLookup upserts one catalog row: insert when the code is new, rename
// when the stored name differs and the incoming one is non-empty, otherwise
// leave it alone.
func (s *ingestStore) ensureLookup(ctx context.Context, table, codigo, nombre string) (core.LookupAction, error) {
	code := utils.NormalizeCode(codigo)

	var current string
	err := s.tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT nombre FROM %s WHERE codigo = $1`, table), code).Scan(&current)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (codigo, nombre) VALUES ($1, $2)`, table),
			code, nombre); err != nil {
			return core.LookupNoop, err
		}
		return core.LookupInserted, nil
	case err != nil:
		return core.LookupNoop, err
	case nombre != "" && current != nombre:
		if _, err := s.tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET nombre = $2 WHERE codigo = $1`, table),
			code, nombre); err != nil {
			return core.LookupNoop, err
		}
		return core.LookupUpdatedName, nil
	default:
		return core.LookupNoop, nil
	}
}

func (s *ingestStore) Commit() error   { return s.tx.Commit() }
func (s *ingestStore) Rollback() error { return s.tx.Rollback() }
