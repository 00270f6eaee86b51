package builder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/vegetable-invoicing/pkg/invoice"
)

var (
	ErrNoActiveDraft = errors.New("no active invoice")
	ErrDraftNotFound = errors.New("invoice draft not found")
	ErrEmptyDraft    = errors.New("invoice has no items")
)

// Saver is the part of the invoice store a builder needs to finalize a draft.
type Saver interface {
	NextInvoiceNumber(ctx context.Context) (string, error)
	Save(ctx context.Context, inv invoice.Invoice) error
}

// Builder holds the in-progress drafts of one session. It is not safe for concurrent use.
type Builder struct {
	drafts   []*invoice.Draft
	activeID string
	label    string
	seq      int
	now      func() time.Time
}

type Option func(*Builder)

// WithLabel sets the display prefix of new drafts ("Facture" gives "Facture 1", "Facture 2"...).
func WithLabel(label string) Option {
	return func(b *Builder) { b.label = label }
}

func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// New returns a builder with one empty, active draft.
func New(opts ...Option) *Builder {
	b := &Builder{label: "Facture", now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	b.AddDraft()
	return b
}

// AddDraft creates an empty draft with the next display name and activates it.
func (b *Builder) AddDraft() invoice.Draft {
	b.seq++
	d := &invoice.Draft{
		ID:        uuid.NewString(),
		Name:      fmt.Sprintf("%s %d", b.label, b.seq),
		Items:     []invoice.LineItem{},
		CreatedAt: b.now(),
	}
	b.drafts = append(b.drafts, d)
	b.activeID = d.ID
	return copyDraft(d)
}

// RemoveDraft deletes a draft. When the active draft goes, the first remaining draft
// becomes active, or none if it was the last one.
func (b *Builder) RemoveDraft(id string) error {
	idx := b.index(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	b.drafts = append(b.drafts[:idx], b.drafts[idx+1:]...)
	if b.activeID == id {
		b.activeID = ""
		if len(b.drafts) > 0 {
			b.activeID = b.drafts[0].ID
		}
	}
	return nil
}

func (b *Builder) Activate(id string) error {
	if b.index(id) < 0 {
		return fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	b.activeID = id
	return nil
}

// Active returns the active draft; ok is false when no draft exists.
func (b *Builder) Active() (invoice.Draft, bool) {
	d := b.find(b.activeID)
	if d == nil {
		return invoice.Draft{}, false
	}
	return copyDraft(d), true
}

func (b *Builder) Draft(id string) (invoice.Draft, bool) {
	d := b.find(id)
	if d == nil {
		return invoice.Draft{}, false
	}
	return copyDraft(d), true
}

// Drafts returns copies of all drafts in creation order.
func (b *Builder) Drafts() []invoice.Draft {
	out := make([]invoice.Draft, 0, len(b.drafts))
	for _, d := range b.drafts {
		out = append(out, copyDraft(d))
	}
	return out
}

// AddItem validates the input and appends a new item to the active draft.
func (b *Builder) AddItem(name string, quantity, unitPrice float64) (invoice.LineItem, error) {
	d := b.find(b.activeID)
	if d == nil {
		return invoice.LineItem{}, ErrNoActiveDraft
	}
	item, err := invoice.NewLineItem(name, quantity, unitPrice)
	if err != nil {
		return invoice.LineItem{}, err
	}
	items := append(invoice.CloneItems(d.Items), item)
	if math.IsInf(invoice.ComputeTotal(items), 0) {
		return invoice.LineItem{}, invoice.TooLarge("invoice total")
	}
	d.Items = items
	return item, nil
}

// RemoveItem drops the matching item. Unknown drafts or items are ignored.
func (b *Builder) RemoveItem(draftID, itemID string) {
	d := b.find(draftID)
	if d == nil {
		return
	}
	for i, it := range d.Items {
		if it.ID == itemID {
			d.Items = append(d.Items[:i:i], d.Items[i+1:]...)
			return
		}
	}
}

// Clear empties a draft. Asking for confirmation is up to the caller.
func (b *Builder) Clear(draftID string) {
	if d := b.find(draftID); d != nil {
		d.Items = []invoice.LineItem{}
	}
}

// Finalize snapshots a draft into an invoice carrying number. The draft is not modified.
func (b *Builder) Finalize(draftID, number string) (invoice.Invoice, error) {
	d := b.find(draftID)
	if d == nil {
		return invoice.Invoice{}, fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
	}
	if len(d.Items) == 0 {
		return invoice.Invoice{}, ErrEmptyDraft
	}
	items := invoice.CloneItems(d.Items)
	return invoice.Invoice{
		ID:     uuid.NewString(),
		Number: number,
		Date:   invoice.Timestamp(b.now()),
		Items:  items,
		Total:  invoice.ComputeTotal(items),
	}, nil
}

// Save finalizes the draft with the next number, persists it, then clears the draft.
// On failure the draft keeps its items.
func (b *Builder) Save(ctx context.Context, draftID string, saver Saver) (invoice.Invoice, error) {
	d := b.find(draftID)
	if d == nil {
		return invoice.Invoice{}, fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
	}
	if len(d.Items) == 0 {
		return invoice.Invoice{}, ErrEmptyDraft
	}
	number, err := saver.NextInvoiceNumber(ctx)
	if err != nil {
		return invoice.Invoice{}, fmt.Errorf("numbering invoice: %w", err)
	}
	inv, err := b.Finalize(draftID, number)
	if err != nil {
		return invoice.Invoice{}, err
	}
	if err := saver.Save(ctx, inv); err != nil {
		return invoice.Invoice{}, fmt.Errorf("saving invoice %s: %w", number, err)
	}
	b.Clear(draftID)
	return inv, nil
}

func (b *Builder) index(id string) int {
	for i, d := range b.drafts {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func (b *Builder) find(id string) *invoice.Draft {
	if i := b.index(id); i >= 0 {
		return b.drafts[i]
	}
	return nil
}

func copyDraft(d *invoice.Draft) invoice.Draft {
	c := *d
	c.Items = invoice.CloneItems(d.Items)
	return c
}
