package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vegetable-invoicing/pkg/builder"
	"github.com/vegetable-invoicing/pkg/export"
	"github.com/vegetable-invoicing/pkg/invoice"
	"github.com/vegetable-invoicing/pkg/logging"
	"github.com/vegetable-invoicing/pkg/store"
)

// ErrQuit is returned by Exec for the quit command.
var ErrQuit = errors.New("quit")

// Session is the interactive invoice builder: a line-oriented shell over a Builder,
// the invoice store and the exporter.
type Session struct {
	Builder  *builder.Builder
	Store    *store.Store
	Exporter *export.Exporter
	Archiver export.Archiver
	OutDir   string

	// Confirm asks before destructive actions. Defaults to a y/N prompt on the input.
	Confirm func(prompt string) bool

	in     *bufio.Scanner
	out    io.Writer
	logger *logrus.Logger
}

func New(b *builder.Builder, s *store.Store, e *export.Exporter, in io.Reader, out io.Writer, logger *logrus.Logger) *Session {
	sess := &Session{
		Builder:  b,
		Store:    s,
		Exporter: e,
		OutDir:   ".",
		in:       bufio.NewScanner(in),
		out:      out,
		logger:   logger,
	}
	sess.Confirm = sess.ask
	return sess
}

// Run reads commands until quit or end of input.
func (s *Session) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, `Type "help" for the list of commands.`)
	s.prompt()
	for s.in.Scan() {
		err := s.Exec(ctx, s.in.Text())
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			s.report(err)
		}
		s.prompt()
	}
	return s.in.Err()
}

// Exec runs a single command line.
func (s *Session) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "help", "?":
		s.help()
	case "vegetables", "veg":
		s.vegetables()
	case "tabs":
		s.tabs()
	case "new":
		d := s.Builder.AddDraft()
		fmt.Fprintf(s.out, "%s opened\n", d.Name)
	case "switch":
		return s.switchDraft(args)
	case "close":
		return s.closeDraft(args)
	case "add":
		return s.add(args)
	case "remove", "rm":
		return s.removeItem(args)
	case "clear":
		return s.clear()
	case "show":
		return s.show()
	case "save":
		return s.save(ctx)
	case "history", "list":
		return s.history(ctx)
	case "view":
		return s.view(ctx, args)
	case "next":
		number, err := s.Store.NextInvoiceNumber(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, number)
	case "delete":
		return s.deleteInvoice(ctx, args)
	case "export":
		return s.exportInvoice(ctx, args)
	case "print":
		return s.printInvoice(ctx, args)
	case "quit", "exit", "q":
		return ErrQuit
	default:
		return badInput("unknown command %q, type \"help\"", cmd)
	}
	return nil
}

func (s *Session) help() {
	fmt.Fprint(s.out, `Invoice:
  add NAME QTY PRICE   add QTY kg of NAME at PRICE per kg (NAME may be a vegetable number)
  remove N             remove item N of the current invoice
  show                 show the current invoice
  clear                remove every item of the current invoice
  save                 save the current invoice with the next number
Tabs:
  tabs                 list open invoices
  new                  open a new invoice
  switch N             make invoice N current
  close [N]            close invoice N (default: current)
History:
  history              list saved invoices, newest first
  view REF             show a saved invoice (REF = id or number)
  next                 show the next invoice number
  export REF           write the PDF of a saved invoice
  print REF            write the printable page of a saved invoice
  delete REF           delete a saved invoice
Other:
  vegetables           list the vegetable catalog
  quit
`)
}

func (s *Session) vegetables() {
	for i, v := range invoice.Vegetables {
		fmt.Fprintf(s.out, "%3d  %s\n", i+1, v)
	}
}

func (s *Session) tabs() {
	active, _ := s.Builder.Active()
	drafts := s.Builder.Drafts()
	if len(drafts) == 0 {
		fmt.Fprintln(s.out, `No open invoice, type "new".`)
		return
	}
	for i, d := range drafts {
		mark := " "
		if d.ID == active.ID {
			mark = "*"
		}
		line := fmt.Sprintf("%s%d  %s  %s", mark, i+1, d.Name, invoice.Summary(d.Items))
		if total := invoice.ComputeTotal(d.Items); total > 0 {
			line += " • " + s.Exporter.Format.Amount(total)
		}
		fmt.Fprintln(s.out, line)
	}
}

func (s *Session) draftAt(arg string) (invoice.Draft, error) {
	n, err := strconv.Atoi(arg)
	drafts := s.Builder.Drafts()
	if err != nil || n < 1 || n > len(drafts) {
		return invoice.Draft{}, badInput("no invoice tab %q", arg)
	}
	return drafts[n-1], nil
}

func (s *Session) switchDraft(args []string) error {
	if len(args) != 1 {
		return badInput("usage: switch N")
	}
	d, err := s.draftAt(args[0])
	if err != nil {
		return err
	}
	if err := s.Builder.Activate(d.ID); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s is current\n", d.Name)
	return nil
}

func (s *Session) closeDraft(args []string) error {
	var d invoice.Draft
	switch len(args) {
	case 0:
		active, ok := s.Builder.Active()
		if !ok {
			return builder.ErrNoActiveDraft
		}
		d = active
	case 1:
		var err error
		if d, err = s.draftAt(args[0]); err != nil {
			return err
		}
	default:
		return badInput("usage: close [N]")
	}
	if len(d.Items) > 0 && !s.Confirm(fmt.Sprintf("%s has items. Close it anyway?", d.Name)) {
		return nil
	}
	if err := s.Builder.RemoveDraft(d.ID); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s closed\n", d.Name)
	return nil
}

func (s *Session) add(args []string) error {
	if len(args) < 3 {
		return badInput("usage: add NAME QTY PRICE")
	}
	n := len(args)
	qty, err := parseNumber(args[n-2])
	if err != nil {
		return badInput("quantity %q is not a number", args[n-2])
	}
	price, err := parseNumber(args[n-1])
	if err != nil {
		return badInput("price %q is not a number", args[n-1])
	}
	name := strings.Join(args[:n-2], " ")
	if idx, err := strconv.Atoi(name); err == nil && idx >= 1 && idx <= len(invoice.Vegetables) {
		name = invoice.Vegetables[idx-1]
	}
	item, err := s.Builder.AddItem(name, qty, price)
	if err != nil {
		return err
	}
	f := s.Exporter.Format
	fmt.Fprintf(s.out, "+ %s  %s × %s = %s\n", item.Name, f.Quantity(item.Quantity), f.UnitPrice(item.UnitPrice), f.Amount(item.Total))
	return nil
}

// parseNumber accepts both "1.5" and "1,5".
func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}

func (s *Session) removeItem(args []string) error {
	if len(args) != 1 {
		return badInput("usage: remove N")
	}
	d, ok := s.Builder.Active()
	if !ok {
		return builder.ErrNoActiveDraft
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(d.Items) {
		return badInput("no item %q on %s", args[0], d.Name)
	}
	item := d.Items[n-1]
	s.Builder.RemoveItem(d.ID, item.ID)
	fmt.Fprintf(s.out, "- %s\n", item.Name)
	return nil
}

func (s *Session) clear() error {
	d, ok := s.Builder.Active()
	if !ok {
		return builder.ErrNoActiveDraft
	}
	if len(d.Items) == 0 {
		return nil
	}
	if !s.Confirm(fmt.Sprintf("Clear the %d items of %s?", len(d.Items), d.Name)) {
		return nil
	}
	s.Builder.Clear(d.ID)
	fmt.Fprintf(s.out, "%s cleared\n", d.Name)
	return nil
}

func (s *Session) show() error {
	d, ok := s.Builder.Active()
	if !ok {
		return builder.ErrNoActiveDraft
	}
	fmt.Fprintf(s.out, "%s (%s)\n", d.Name, invoice.Summary(d.Items))
	s.printItems(d.Items)
	fmt.Fprintf(s.out, "Total: %s\n", s.Exporter.Format.Amount(invoice.ComputeTotal(d.Items)))
	return nil
}

func (s *Session) printItems(items []invoice.LineItem) {
	f := s.Exporter.Format
	for i, it := range items {
		fmt.Fprintf(s.out, "%3d  %-18s %s × %s  %s\n", i+1, it.Name, f.Quantity(it.Quantity), f.UnitPrice(it.UnitPrice), f.Amount(it.Total))
	}
}

func (s *Session) save(ctx context.Context) error {
	d, ok := s.Builder.Active()
	if !ok {
		return builder.ErrNoActiveDraft
	}
	inv, err := s.Builder.Save(ctx, d.ID, s.Store)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Invoice %s saved (%s)\n", inv.Number, s.Exporter.Format.Amount(inv.Total))
	return nil
}

func (s *Session) history(ctx context.Context) error {
	invoices, err := s.Store.List(ctx)
	if err != nil {
		return err
	}
	if len(invoices) == 0 {
		fmt.Fprintln(s.out, "No saved invoice.")
		return nil
	}
	invoice.SortByDateDesc(invoices)
	f := s.Exporter.Format
	for _, inv := range invoices {
		fmt.Fprintf(s.out, "%s  %s  %-11s %s  %s\n", inv.Number, f.Date(inv.Date), invoice.Summary(inv.Items), f.Amount(inv.Total), inv.ID)
	}
	return nil
}

func (s *Session) lookup(ctx context.Context, args []string, usage string) (invoice.Invoice, error) {
	if len(args) != 1 {
		return invoice.Invoice{}, badInput("usage: %s", usage)
	}
	return s.Store.Lookup(ctx, args[0])
}

func (s *Session) view(ctx context.Context, args []string) error {
	inv, err := s.lookup(ctx, args, "view REF")
	if err != nil {
		return err
	}
	f := s.Exporter.Format
	fmt.Fprintf(s.out, "%s  %s\n", inv.Number, f.Date(inv.Date))
	s.printItems(inv.Items)
	fmt.Fprintf(s.out, "Total: %s\n", f.Amount(inv.Total))
	return nil
}

func (s *Session) deleteInvoice(ctx context.Context, args []string) error {
	inv, err := s.lookup(ctx, args, "delete REF")
	if err != nil {
		return err
	}
	if !s.Confirm(fmt.Sprintf("Delete invoice %s?", inv.Number)) {
		return nil
	}
	if err := s.Store.Delete(ctx, inv.ID); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Invoice %s deleted\n", inv.Number)
	return nil
}

func (s *Session) exportInvoice(ctx context.Context, args []string) error {
	inv, err := s.lookup(ctx, args, "export REF")
	if err != nil {
		return err
	}
	path, err := s.Exporter.ExportFile(s.OutDir, inv)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	fmt.Fprintf(s.out, "PDF written to %s\n", path)
	if s.Archiver != nil {
		loc, err := s.Exporter.Archive(ctx, s.Archiver, inv)
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		fmt.Fprintf(s.out, "PDF uploaded to %s\n", loc)
	}
	return nil
}

func (s *Session) printInvoice(ctx context.Context, args []string) error {
	inv, err := s.lookup(ctx, args, "print REF")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.OutDir, 0o755); err != nil {
		return err
	}
	name := strings.TrimSuffix(s.Exporter.FileName(inv), ".pdf") + ".html"
	path := filepath.Join(s.OutDir, name)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.Exporter.WriteHTML(f, inv); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("print failed: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Printable page written to %s\n", path)
	return nil
}

func (s *Session) ask(prompt string) bool {
	fmt.Fprintf(s.out, "%s [y/N] ", prompt)
	if !s.in.Scan() {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(s.in.Text())) {
	case "y", "yes", "o", "oui":
		return true
	}
	return false
}

func (s *Session) prompt() {
	if d, ok := s.Builder.Active(); ok {
		fmt.Fprintf(s.out, "%s> ", d.Name)
		return
	}
	fmt.Fprint(s.out, "> ")
}

func (s *Session) report(err error) {
	if !isUserError(err) {
		logging.LogError(s.logger, "session", "Exec", "command failed", nil, err)
	}
	fmt.Fprintf(s.out, "error: %v\n", err)
}

// inputError is a mistake in what the user typed.
type inputError struct{ msg string }

func (e *inputError) Error() string { return e.msg }

func badInput(format string, args ...any) error {
	return &inputError{msg: fmt.Sprintf(format, args...)}
}

func isUserError(err error) bool {
	var verr *invoice.ValidationError
	var ierr *inputError
	return errors.As(err, &verr) || errors.As(err, &ierr) ||
		errors.Is(err, builder.ErrEmptyDraft) ||
		errors.Is(err, builder.ErrNoActiveDraft) ||
		errors.Is(err, builder.ErrDraftNotFound) ||
		errors.Is(err, store.ErrNotFound)
}
