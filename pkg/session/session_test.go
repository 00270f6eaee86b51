package session

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vegetable-invoicing/pkg/builder"
	"github.com/vegetable-invoicing/pkg/config"
	"github.com/vegetable-invoicing/pkg/export"
	"github.com/vegetable-invoicing/pkg/logging"
	"github.com/vegetable-invoicing/pkg/store"
)

func newTestSession(t *testing.T, script string) (*Session, *store.Store, *bytes.Buffer) {
	t.Helper()
	st := store.New(store.NewMemorySlot(), "vegetable_invoices", "FAC", logging.Discard())
	ex := export.New(config.ExportConfig{
		Title:      "FACTURE DE VENTE",
		Footer:     "Merci pour votre achat !",
		Currency:   "FCFA",
		Unit:       "kg",
		Language:   "en",
		DateLayout: "02/01/2006",
		FilePrefix: "facture",
	})
	ex.Format.Location = time.UTC
	out := &bytes.Buffer{}
	sess := New(builder.New(), st, ex, strings.NewReader(script), out, logging.Discard())
	sess.OutDir = t.TempDir()
	return sess, st, out
}

func TestRun_BuildSaveDelete(t *testing.T) {
	ctx := context.Background()
	script := strings.Join([]string{
		"add Tomatoes 2 1000",
		"add Onions 1 500",
		"show",
		"save",
		"history",
		"delete FAC-0001",
		"y",
		"history",
		"quit",
	}, "\n")
	sess, st, out := newTestSession(t, script)

	if err := sess.Run(ctx); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	text := out.String()
	for _, want := range []string{
		"+ Tomatoes  2 kg × 1,000 FCFA/kg = 2,000 FCFA",
		"Total: 2,500 FCFA",
		"Invoice FAC-0001 saved (2,500 FCFA)",
		"Invoice FAC-0001 deleted",
		"No saved invoice.",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	list, _ := st.List(ctx)
	if len(list) != 0 {
		t.Fatalf("expected empty store, got %d", len(list))
	}
}

func TestRun_ValidationErrorsKeepGoing(t *testing.T) {
	sess, _, out := newTestSession(t, "add Ail 0 100\nadd Ail abc 100\nadd 13 1,5 2000\nshow\n")
	if err := sess.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "error: invalid item: quantity must be a positive number of kilograms") {
		t.Fatalf("expected validation message:\n%s", text)
	}
	if !strings.Contains(text, `error: quantity "abc" is not a number`) {
		t.Fatalf("expected parse message:\n%s", text)
	}
	if !strings.Contains(text, "+ Ail  1.5 kg × 2,000 FCFA/kg = 3,000 FCFA") {
		t.Fatalf("expected catalog item 13 to be Ail:\n%s", text)
	}
	d, _ := sess.Builder.Active()
	if len(d.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(d.Items))
	}
}

func TestClear_RequiresConfirmation(t *testing.T) {
	sess, _, _ := newTestSession(t, "add Ail 1 100\nclear\nn\nclear\ny\n")
	if err := sess.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	d, _ := sess.Builder.Active()
	if len(d.Items) != 0 {
		t.Fatalf("expected draft cleared after confirmation")
	}

	sess, _, _ = newTestSession(t, "add Ail 1 100\nclear\nn\n")
	sess.Run(context.Background())
	d, _ = sess.Builder.Active()
	if len(d.Items) != 1 {
		t.Fatalf("declining must leave the draft untouched")
	}
}

func TestTabs_CloseAndSwitch(t *testing.T) {
	ctx := context.Background()
	sess, _, out := newTestSession(t, "")
	asked := 0
	sess.Confirm = func(string) bool { asked++; return false }

	steps := []string{"new", "add Gombo 1 800", "switch 1", "close 2", "tabs"}
	for _, line := range steps {
		if err := sess.Exec(ctx, line); err != nil {
			t.Fatalf("Exec(%q) error: %v", line, err)
		}
	}
	if asked != 1 {
		t.Fatalf("closing a non-empty tab must ask, asked %d times", asked)
	}
	if len(sess.Builder.Drafts()) != 2 {
		t.Fatalf("declined close must keep the tab")
	}
	if !strings.Contains(out.String(), " 2  Facture 2  1 article • 800 FCFA") {
		t.Fatalf("unexpected tabs output:\n%s", out.String())
	}

	for _, line := range []string{"close 1", "close"} {
		if err := sess.Exec(ctx, line); err != nil {
			t.Fatalf("Exec(%q) error: %v", line, err)
		}
	}
	sess.Confirm = func(string) bool { return true }
	if err := sess.Exec(ctx, "close"); err != nil {
		t.Fatalf("close error: %v", err)
	}
	if len(sess.Builder.Drafts()) != 0 {
		t.Fatalf("expected all tabs closed, got %d", len(sess.Builder.Drafts()))
	}
	if err := sess.Exec(ctx, "add Ail 1 100"); err != builder.ErrNoActiveDraft {
		t.Fatalf("expected ErrNoActiveDraft, got %v", err)
	}
	if err := sess.Exec(ctx, "new"); err != nil {
		t.Fatalf("new error: %v", err)
	}
	if _, ok := sess.Builder.Active(); !ok {
		t.Fatalf("expected a new active tab")
	}
}

func TestSave_EmptyDraftIsRejected(t *testing.T) {
	sess, st, _ := newTestSession(t, "")
	if err := sess.Exec(context.Background(), "save"); err != builder.ErrEmptyDraft {
		t.Fatalf("expected ErrEmptyDraft, got %v", err)
	}
	list, _ := st.List(context.Background())
	if len(list) != 0 {
		t.Fatalf("nothing should be saved")
	}
}

func TestExportAndPrint(t *testing.T) {
	ctx := context.Background()
	sess, _, _ := newTestSession(t, "")
	for _, line := range []string{"add Carottes 3 600", "save", "export FAC-0001", "print FAC-0001"} {
		if err := sess.Exec(ctx, line); err != nil {
			t.Fatalf("Exec(%q) error: %v", line, err)
		}
	}
	pdf, err := os.ReadFile(filepath.Join(sess.OutDir, "facture-FAC-0001.pdf"))
	if err != nil || !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Fatalf("expected PDF export, err=%v", err)
	}
	page, err := os.ReadFile(filepath.Join(sess.OutDir, "facture-FAC-0001.html"))
	if err != nil || !strings.Contains(string(page), "TOTAL: 1,800 FCFA") {
		t.Fatalf("expected printable page, err=%v", err)
	}
	if err := sess.Exec(ctx, "export FAC-0099"); err == nil {
		t.Fatalf("expected unknown invoice error")
	}
}

func TestExport_FailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	sess, st, _ := newTestSession(t, "")
	for _, line := range []string{"add Piment 2 1500", "save"} {
		if err := sess.Exec(ctx, line); err != nil {
			t.Fatalf("Exec(%q) error: %v", line, err)
		}
	}
	before, _ := st.List(ctx)

	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("creating blocker file: %v", err)
	}
	sess.OutDir = filepath.Join(blocker, "exports")

	err := sess.Exec(ctx, "export FAC-0001")
	if err == nil || !strings.HasPrefix(err.Error(), "export failed:") {
		t.Fatalf("expected export failure, got %v", err)
	}
	after, _ := st.List(ctx)
	if len(after) != len(before) || after[0].ID != before[0].ID || after[0].Total != before[0].Total {
		t.Fatalf("store changed by a failed export: %+v -> %+v", before, after)
	}
	if next, _ := st.NextInvoiceNumber(ctx); next != "FAC-0002" {
		t.Fatalf("expected FAC-0002 after failed export, got %s", next)
	}
}
