package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/vegetable-invoicing/pkg/invoice"
)

const (
	pdfMargin  = 20.0
	pdfRowStep = 15.0
)

// Narrow spaces used as group separators are outside the core fonts' cp1252 range.
var pdfSpaces = strings.NewReplacer("\u202f", "\u00a0")

// WritePDF draws inv on A4 pages and writes the PDF to w.
func (e *Exporter) WritePDF(w io.Writer, inv invoice.Invoice) error {
	doc := e.Layout(inv)

	pdf := gofpdf.New("P", "mm", "A4", "")
	utf := pdf.UnicodeTranslatorFromDescriptor("")
	tr := func(s string) string { return utf(pdfSpaces.Replace(s)) }
	pageW, pageH := pdf.GetPageSize()
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.AddPage()

	centered := func(y float64, s string) {
		s = tr(s)
		pdf.Text((pageW-pdf.GetStringWidth(s))/2, y, s)
	}
	columns := [4]float64{pdfMargin, pdfMargin + 60, pdfMargin + 100, pdfMargin + 150}
	tableHeader := func(y float64) float64 {
		pdf.SetFont("Arial", "B", 12)
		for i, h := range doc.Headers {
			pdf.Text(columns[i], y, tr(h))
		}
		y += 5
		pdf.Line(pdfMargin, y, pageW-pdfMargin, y)
		return y + pdfRowStep
	}

	y := 30.0
	pdf.SetFont("Arial", "B", 20)
	centered(y, doc.Title)

	y += 20
	pdf.SetFont("Arial", "", 12)
	pdf.Text(pdfMargin, y, tr(doc.Number))
	pdf.Text(pageW-pdfMargin-60, y, tr(doc.Date))

	y = tableHeader(y + 30)
	pdf.SetFont("Arial", "", 12)
	for _, row := range doc.Rows {
		if y > pageH-pdfMargin-40 {
			pdf.AddPage()
			y = tableHeader(30)
			pdf.SetFont("Arial", "", 12)
		}
		pdf.Text(columns[0], y, tr(row.Name))
		pdf.Text(columns[1], y, tr(row.Quantity))
		pdf.Text(columns[2], y, tr(row.UnitPrice))
		pdf.Text(columns[3], y, tr(row.Total))
		y += pdfRowStep
	}

	y += 5
	pdf.Line(pdfMargin, y, pageW-pdfMargin, y)
	y += 15

	pdf.SetFont("Arial", "B", 14)
	pdf.Text(pageW-pdfMargin-80, y, tr(doc.Total))

	y += 40
	if y > pageH-pdfMargin {
		pdf.AddPage()
		y = 30
	}
	pdf.SetFont("Arial", "", 10)
	centered(y, doc.Footer)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("rendering %s: %w", doc.FileName, err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("writing %s: %w", doc.FileName, err)
	}
	return nil
}

// ExportFile writes the invoice PDF into dir and returns its path.
// Nothing is left on disk when rendering fails.
func (e *Exporter) ExportFile(dir string, inv invoice.Invoice) (string, error) {
	var buf bytes.Buffer
	if err := e.WritePDF(&buf, inv); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, e.FileName(inv))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
