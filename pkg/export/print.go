package export

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/vegetable-invoicing/pkg/invoice"
)

//go:embed templates/*.html
var templates embed.FS

var printTemplate = template.Must(template.ParseFS(templates, "templates/print.html"))

// WriteHTML renders the print view of inv: the PDF layout as a standalone page
// without any controls.
func (e *Exporter) WriteHTML(w io.Writer, inv invoice.Invoice) error {
	doc := e.Layout(inv)
	if err := printTemplate.Execute(w, doc); err != nil {
		return fmt.Errorf("rendering print view of %s: %w", inv.Number, err)
	}
	return nil
}
