package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlipWWW(t *testing.T) {
	assert.Equal(t,
		"https://boe.es/boe/dias/2026/01/15/pdfs/BOE-A-2026-1.pdf",
		flipWWW("https://www.boe.es/boe/dias/2026/01/15/pdfs/BOE-A-2026-1.pdf"))
	assert.Equal(t,
		"https://www.boe.es/x.pdf",
		flipWWW("https://boe.es/x.pdf"))
	// Unparseable input comes back unchanged.
	assert.Equal(t, "::not a url::", flipWWW("::not a url::"))
}

func TestLooksLikePDF(t *testing.T) {
	assert.True(t, looksLikePDF("application/pdf", nil))
	assert.True(t, looksLikePDF("application/pdf; charset=binary", []byte("junk")))
	assert.True(t, looksLikePDF("application/octet-stream", []byte("%PDF-1.7...")))
	assert.False(t, looksLikePDF("text/html", []byte("<html>")))
	assert.False(t, looksLikePDF("", []byte("")))
}

func TestCleanText(t *testing.T) {
	in := "Primera   línea\t con  espacios \n   segunda línea  \n\n tercera"
	assert.Equal(t, "Primera línea con espacios\nsegunda línea\ntercera", cleanText(in))
	assert.Equal(t, "", cleanText("  \n \t "))
}
