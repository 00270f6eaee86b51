package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vegetable-invoicing/pkg/config"
	"github.com/vegetable-invoicing/pkg/invoice"
)

func testExporter() *Exporter {
	e := New(config.ExportConfig{
		Title:      "FACTURE DE VENTE",
		Footer:     "Merci pour votre achat !",
		Currency:   "FCFA",
		Unit:       "kg",
		Language:   "en",
		DateLayout: "02/01/2006",
		FilePrefix: "facture",
	})
	e.Format.Location = time.UTC
	return e
}

func testInvoice() invoice.Invoice {
	items := []invoice.LineItem{
		{ID: "1", Name: "Tomates", Quantity: 1.5, UnitPrice: 1000, Total: 1500},
		{ID: "2", Name: "Pommes de terre", Quantity: 2, UnitPrice: 1000, Total: 2000},
		{ID: "3", Name: "Gingembre", Quantity: 0.25, UnitPrice: 3000, Total: 750},
	}
	return invoice.Invoice{
		ID:     "inv-1",
		Number: "FAC-0007",
		Date:   time.Date(2026, 3, 9, 14, 5, 0, 0, time.UTC),
		Items:  items,
		Total:  invoice.ComputeTotal(items),
	}
}

func TestFormatter(t *testing.T) {
	f := NewFormatter("en", "FCFA", "kg", "02/01/2006")
	cases := []struct {
		in       float64
		expected string
	}{
		{0, "0 FCFA"},
		{750, "750 FCFA"},
		{4250, "4,250 FCFA"},
		{1234567, "1,234,567 FCFA"},
		{1500.5, "1,500.5 FCFA"},
	}
	for _, tc := range cases {
		if got := f.Amount(tc.in); got != tc.expected {
			t.Fatalf("Amount(%v) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
	if got := f.Quantity(0.25); got != "0.25 kg" {
		t.Fatalf("unexpected quantity %q", got)
	}
	if got := f.Quantity(1.375); got != "1.375 kg" {
		t.Fatalf("unexpected quantity %q", got)
	}
	if got := f.UnitPrice(1000); got != "1,000 FCFA/kg" {
		t.Fatalf("unexpected unit price %q", got)
	}
}

func TestLayout(t *testing.T) {
	doc := testExporter().Layout(testInvoice())

	if doc.Title != "FACTURE DE VENTE" || doc.Footer != "Merci pour votre achat !" {
		t.Fatalf("unexpected title/footer %q %q", doc.Title, doc.Footer)
	}
	if doc.Number != "Numéro: FAC-0007" {
		t.Fatalf("unexpected number line %q", doc.Number)
	}
	if doc.Date != "Date: 09/03/2026" {
		t.Fatalf("unexpected date line %q", doc.Date)
	}
	if doc.Total != "TOTAL: 4,250 FCFA" {
		t.Fatalf("unexpected total line %q", doc.Total)
	}
	if doc.FileName != "facture-FAC-0007.pdf" {
		t.Fatalf("unexpected file name %q", doc.FileName)
	}
	if len(doc.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(doc.Rows))
	}
	want := Row{Name: "Tomates", Quantity: "1.5 kg", UnitPrice: "1,000 FCFA", Total: "1,500 FCFA"}
	if doc.Rows[0] != want {
		t.Fatalf("unexpected first row %+v", doc.Rows[0])
	}
}

func TestLayout_WeighedQuantityKeepsGrams(t *testing.T) {
	item, err := invoice.NewLineItem("Ail", 0.125, 1000)
	if err != nil {
		t.Fatalf("NewLineItem error: %v", err)
	}
	inv := invoice.Invoice{Number: "FAC-0001", Items: []invoice.LineItem{item}, Total: item.Total}

	want := Row{Name: "Ail", Quantity: "0.125 kg", UnitPrice: "1,000 FCFA", Total: "125 FCFA"}
	if got := testExporter().Layout(inv).Rows[0]; got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestFileName_StripsSeparators(t *testing.T) {
	inv := invoice.Invoice{Number: "../FAC/0001"}
	if got := testExporter().FileName(inv); got != "facture-.._FAC_0001.pdf" {
		t.Fatalf("unexpected file name %q", got)
	}
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	if err := testExporter().WritePDF(&buf, testInvoice()); err != nil {
		t.Fatalf("WritePDF error: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestWritePDF_WriterErrorIsReturned(t *testing.T) {
	diskFull := errors.New("disk full")
	inv := testInvoice()
	err := testExporter().WritePDF(failingWriter{err: diskFull}, inv)
	if !errors.Is(err, diskFull) {
		t.Fatalf("expected wrapped writer error, got %v", err)
	}
	if !strings.Contains(err.Error(), "facture-FAC-0007.pdf") {
		t.Fatalf("error should name the document: %v", err)
	}
	if inv.Total != 4250 || len(inv.Items) != 3 {
		t.Fatalf("invoice modified by a failed export: %+v", inv)
	}
}

func TestWritePDF_ManyItemsSpansPages(t *testing.T) {
	inv := testInvoice()
	for i := 0; i < 40; i++ {
		inv.Items = append(inv.Items, invoice.LineItem{Name: "Salade", Quantity: 1, UnitPrice: 100, Total: 100})
	}
	inv.Total = invoice.ComputeTotal(inv.Items)
	var buf bytes.Buffer
	if err := testExporter().WritePDF(&buf, inv); err != nil {
		t.Fatalf("WritePDF error: %v", err)
	}
}

func TestExportFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := testExporter().ExportFile(dir, testInvoice())
	if err != nil {
		t.Fatalf("ExportFile error: %v", err)
	}
	if filepath.Base(path) != "facture-FAC-0007.pdf" {
		t.Fatalf("unexpected path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("exported file is not a PDF")
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := testExporter().WriteHTML(&buf, testInvoice()); err != nil {
		t.Fatalf("WriteHTML error: %v", err)
	}
	page := buf.String()
	for _, want := range []string{"FACTURE DE VENTE", "FAC-0007", "09/03/2026", "Pommes de terre", "TOTAL: 4,250 FCFA", "Merci pour votre achat !"} {
		if !strings.Contains(page, want) {
			t.Fatalf("print view missing %q", want)
		}
	}
	for _, control := range []string{"<button", "<form", "<input"} {
		if strings.Contains(page, control) {
			t.Fatalf("print view must not contain %s", control)
		}
	}
}

type recordingArchiver struct {
	name string
	size int
}

func (r *recordingArchiver) Archive(_ context.Context, name string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	r.name, r.size = name, len(data)
	return "s3://bucket/" + name, nil
}

func TestArchive(t *testing.T) {
	a := &recordingArchiver{}
	loc, err := testExporter().Archive(context.Background(), a, testInvoice())
	if err != nil {
		t.Fatalf("Archive error: %v", err)
	}
	if a.name != "facture-FAC-0007.pdf" || a.size == 0 {
		t.Fatalf("unexpected upload %+v", a)
	}
	if loc != "s3://bucket/facture-FAC-0007.pdf" {
		t.Fatalf("unexpected location %q", loc)
	}
}
