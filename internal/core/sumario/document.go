// Package sumario fetches and decodes the BOE daily sumario: the XML index
// of everything published on one date, nested section → department →
// epigraph → item.
package sumario

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// Item is one published entry as it appears in the sumario. Besides the
// linkage fields, the feed occasionally carries inline text under several
// tag names; BodyCandidates collects whichever are present.
type Item struct {
	Identificador    string `xml:"identificador"`
	Titulo           string `xml:"titulo"`
	Control          string `xml:"control"`
	URLPDF           string `xml:"url_pdf"`
	URLHTML          string `xml:"url_html"`
	URLXML           string `xml:"url_xml"`
	FechaPublicacion string `xml:"fecha_publicacion"`

	Contenido   string `xml:"contenido"`
	Texto       string `xml:"texto"`
	Extracto    string `xml:"extracto"`
	Resumen     string `xml:"resumen"`
	Descripcion string `xml:"descripcion"`
	Cuerpo      string `xml:"cuerpo"`
	Detalle     string `xml:"detalle"`
}

// BodyCandidates returns the inline text fields that are non-empty, in a
// fixed preference order.
func (it *Item) BodyCandidates() []string {
	var out []string
	for _, v := range []string{it.Contenido, it.Texto, it.Extracto, it.Resumen, it.Descripcion, it.Cuerpo, it.Detalle} {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type Epigrafe struct {
	Nombre string `xml:"nombre,attr"`
	Items  []Item `xml:"item"`
}

type Departamento struct {
	Codigo    string     `xml:"codigo,attr"`
	Nombre    string     `xml:"nombre,attr"`
	Epigrafes []Epigrafe `xml:"epigrafe"`
	// Items directly under the department, outside any epigraph.
	Items []Item `xml:"item"`
}

type Seccion struct {
	Codigo        string         `xml:"codigo,attr"`
	Nombre        string         `xml:"nombre,attr"`
	Departamentos []Departamento `xml:"departamento"`
	// Orphan items directly under the section.
	Items []Item `xml:"item"`
}

// Document is the decoded sumario for one issue date.
type Document struct {
	Fecha     time.Time
	Secciones []Seccion
}

// Parse decodes a sumario from XML. The BOE API wraps the payload in
// response/data/sumario/diario envelopes whose nesting has changed over
// time, so the decoder scans for <seccion> elements at any depth instead
// of pinning the full path.
func Parse(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	doc := &Document{}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode sumario: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "seccion" {
			continue
		}
		var sec Seccion
		if err := dec.DecodeElement(&sec, &start); err != nil {
			return nil, fmt.Errorf("decode seccion: %w", err)
		}
		doc.Secciones = append(doc.Secciones, sec)
	}
	return doc, nil
}

// ParseDate accepts YYYY-MM-DD or compact YYYYMMDD.
func ParseDate(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if len(v) == 8 {
		if d, err := time.Parse("20060102", v); err == nil {
			return d, nil
		}
	}
	d, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD or YYYYMMDD", s)
	}
	return d, nil
}
