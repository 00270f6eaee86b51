package export

import (
	"fmt"
	"strings"

	"github.com/vegetable-invoicing/pkg/config"
	"github.com/vegetable-invoicing/pkg/invoice"
)

// Column and label text of the printed invoice.
var (
	NumberLabel = "Numéro"
	DateLabel   = "Date"
	TotalLabel  = "TOTAL"
	Headers     = [4]string{"Produit", "Quantité", "Prix unitaire", "Total"}
)

// Document is the fixed layout of an exported invoice, already formatted for display.
type Document struct {
	Title    string
	Number   string
	Date     string
	Headers  [4]string
	Rows     []Row
	Total    string
	Footer   string
	FileName string
}

type Row struct {
	Name      string
	Quantity  string
	UnitPrice string
	Total     string
}

// Exporter turns saved invoices into PDF files and printable pages.
type Exporter struct {
	Format     *Formatter
	Title      string
	Footer     string
	FilePrefix string
}

func New(cfg config.ExportConfig) *Exporter {
	return &Exporter{
		Format:     NewFormatter(cfg.Language, cfg.Currency, cfg.Unit, cfg.DateLayout),
		Title:      cfg.Title,
		Footer:     cfg.Footer,
		FilePrefix: cfg.FilePrefix,
	}
}

// Layout shapes inv into the document drawn by WritePDF and WriteHTML.
func (e *Exporter) Layout(inv invoice.Invoice) Document {
	doc := Document{
		Title:    e.Title,
		Number:   fmt.Sprintf("%s: %s", NumberLabel, inv.Number),
		Date:     fmt.Sprintf("%s: %s", DateLabel, e.Format.Date(inv.Date)),
		Headers:  Headers,
		Rows:     make([]Row, 0, len(inv.Items)),
		Total:    fmt.Sprintf("%s: %s", TotalLabel, e.Format.Amount(inv.Total)),
		Footer:   e.Footer,
		FileName: e.FileName(inv),
	}
	for _, it := range inv.Items {
		doc.Rows = append(doc.Rows, Row{
			Name:      it.Name,
			Quantity:  e.Format.Quantity(it.Quantity),
			UnitPrice: e.Format.Amount(it.UnitPrice),
			Total:     e.Format.Amount(it.Total),
		})
	}
	return doc
}

// FileName is "<prefix>-<number>.pdf" with path separators removed from the number.
func (e *Exporter) FileName(inv invoice.Invoice) string {
	number := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, inv.Number)
	return fmt.Sprintf("%s-%s.pdf", e.FilePrefix, number)
}
