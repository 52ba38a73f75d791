// Package sniffer classifies uploaded statement files as delimited text
// or PDF from their filename, declared media type and leading bytes.
package sniffer

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/finwise/statement-ingest/internal/models"
)

// Format is a recognized statement file format.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

var pdfMagic = []byte("%PDF-")

// Detect classifies an upload. A file is accepted when its extension or
// declared media type matches CSV or PDF; anything else fails with
// models.ErrUnsupportedFormat regardless of content. A file declared as
// CSV but starting with the PDF magic bytes is treated as PDF, since
// browsers sometimes mislabel downloaded statements.
func Detect(filename, mediaType string, data []byte) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	mime := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}

	isCSV := ext == ".csv" || mime == "text/csv" || mime == "application/vnd.ms-excel"
	isPDF := ext == ".pdf" || mime == "application/pdf"

	switch {
	case isPDF:
		return FormatPDF, nil
	case isCSV:
		if bytes.HasPrefix(data, pdfMagic) {
			return FormatPDF, nil
		}
		return FormatCSV, nil
	default:
		return "", models.ErrUnsupportedFormat
	}
}
