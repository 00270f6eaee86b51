package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/vegetable-invoicing/pkg/invoice"
	"github.com/vegetable-invoicing/pkg/logging"
)

var ErrNotFound = errors.New("invoice not found")

// Suffixes above this are treated as foreign so the next number never overflows.
const maxNumberSuffix = 999_999_999

// Store persists finalized invoices as one JSON array under a single slot key.
// Calls within a process are serialized; separate processes sharing a slot are not.
type Store struct {
	mu     sync.Mutex
	slot   Slot
	key    string
	prefix string
	logger *logrus.Logger
}

func New(slot Slot, key, prefix string, logger *logrus.Logger) *Store {
	return &Store{
		slot:   slot,
		key:    key,
		prefix: prefix,
		logger: logger,
	}
}

func (s *Store) Prefix() string { return s.prefix }

func (s *Store) Close() error {
	return s.slot.Close()
}

// Save appends inv to the collection.
func (s *Store) Save(ctx context.Context, inv invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invoices, raw, corrupt, err := s.load(ctx)
	if err != nil {
		return err
	}
	if corrupt {
		if err := s.slot.Put(ctx, s.key+".corrupt", raw); err != nil {
			return fmt.Errorf("preserving unreadable invoices: %w", err)
		}
		s.logger.WithField("key", s.key+".corrupt").Warn("unreadable invoice data moved aside before overwrite")
	}
	inv.Items = invoice.CloneItems(inv.Items)
	return s.write(ctx, append(invoices, inv))
}

// List returns every stored invoice in storage order.
func (s *Store) List(ctx context.Context) ([]invoice.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invoices, _, _, err := s.load(ctx)
	return invoices, err
}

func (s *Store) Get(ctx context.Context, id string) (invoice.Invoice, bool, error) {
	invoices, err := s.List(ctx)
	if err != nil {
		return invoice.Invoice{}, false, err
	}
	for _, inv := range invoices {
		if inv.ID == id {
			return inv, true, nil
		}
	}
	return invoice.Invoice{}, false, nil
}

// Lookup finds an invoice by id, falling back to its number.
func (s *Store) Lookup(ctx context.Context, ref string) (invoice.Invoice, error) {
	invoices, err := s.List(ctx)
	if err != nil {
		return invoice.Invoice{}, err
	}
	for _, inv := range invoices {
		if inv.ID == ref {
			return inv, nil
		}
	}
	for _, inv := range invoices {
		if strings.EqualFold(inv.Number, ref) {
			return inv, nil
		}
	}
	return invoice.Invoice{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
}

// Delete removes the invoice with the given id. Unknown ids leave the slot untouched.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invoices, _, corrupt, err := s.load(ctx)
	if err != nil || corrupt {
		return err
	}
	kept := invoices[:0:0]
	for _, inv := range invoices {
		if inv.ID != id {
			kept = append(kept, inv)
		}
	}
	if len(kept) == len(invoices) {
		return nil
	}
	return s.write(ctx, kept)
}

// NextInvoiceNumber derives the next number from stored history. It reserves nothing.
func (s *Store) NextInvoiceNumber(ctx context.Context) (string, error) {
	invoices, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	return NextNumber(s.prefix, invoices), nil
}

// NextNumber returns PREFIX- followed by the highest numeric suffix plus one, padded to 4 digits.
// Numbers that do not parse count as 0.
func NextNumber(prefix string, invoices []invoice.Invoice) string {
	last := 0
	for _, inv := range invoices {
		if n := numberSuffix(prefix, inv.Number); n > last {
			last = n
		}
	}
	return fmt.Sprintf("%s-%04d", prefix, last+1)
}

func numberSuffix(prefix, number string) int {
	digits, ok := strings.CutPrefix(number, prefix+"-")
	if !ok {
		return 0
	}
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n > maxNumberSuffix {
		return 0
	}
	return n
}

// load reads the collection. A value that does not decode is reported as corrupt and
// treated as empty rather than failing the caller.
func (s *Store) load(ctx context.Context) (invoices []invoice.Invoice, raw []byte, corrupt bool, err error) {
	raw, found, err := s.slot.Get(ctx, s.key)
	if err != nil {
		logging.LogError(s.logger, "store", "load", "reading invoice slot", s.key, err)
		return nil, nil, false, err
	}
	if !found {
		return []invoice.Invoice{}, nil, false, nil
	}
	if err := json.Unmarshal(raw, &invoices); err != nil {
		logging.LogWarning(s.logger, "store", "load", "invoice data is unreadable, treating as empty", err)
		return []invoice.Invoice{}, raw, true, nil
	}
	if invoices == nil {
		invoices = []invoice.Invoice{}
	}
	return invoices, raw, false, nil
}

func (s *Store) write(ctx context.Context, invoices []invoice.Invoice) error {
	data, err := json.Marshal(invoices)
	if err != nil {
		return fmt.Errorf("encoding invoices: %w", err)
	}
	if err := s.slot.Put(ctx, s.key, data); err != nil {
		logging.LogError(s.logger, "store", "write", "writing invoice slot", s.key, err)
		return err
	}
	return nil
}
