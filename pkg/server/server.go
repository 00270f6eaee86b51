package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/vegetable-invoicing/pkg/export"
	"github.com/vegetable-invoicing/pkg/invoice"
	"github.com/vegetable-invoicing/pkg/logging"
	"github.com/vegetable-invoicing/pkg/store"
)

//go:embed templates/*.html
var templates embed.FS

var historyTemplate = template.Must(template.ParseFS(templates, "templates/history.html"))

// Server is the local history view: saved invoices, their print view and PDF download.
type Server struct {
	store    *store.Store
	exporter *export.Exporter
	logger   *logrus.Logger
	router   *mux.Router
	metrics  *metrics
}

func New(st *store.Store, ex *export.Exporter, logger *logrus.Logger) *Server {
	s := &Server{store: st, exporter: ex, logger: logger, router: mux.NewRouter(), metrics: newMetrics()}

	s.router.HandleFunc("/", s.indexHandler).Methods("GET")
	s.router.HandleFunc("/invoices", s.listHandler).Methods("GET")
	s.router.HandleFunc("/invoices/{id}", s.getHandler).Methods("GET")
	s.router.HandleFunc("/invoices/{id}", s.deleteHandler).Methods("DELETE")
	s.router.HandleFunc("/invoices/{id}/pdf", s.pdfHandler).Methods("GET")
	s.router.HandleFunc("/invoices/{id}/print", s.printHandler).Methods("GET")
	s.router.HandleFunc("/next-number", s.nextNumberHandler).Methods("GET")
	s.router.Handle("/metrics", s.metrics.handler()).Methods("GET")
	s.router.Use(s.logRequests, s.metrics.middleware)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.WithField("addr", addr).Info("history view listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type historyRow struct {
	ID, Number, Date, Summary, Total string
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.sortedInvoices(r.Context())
	if err != nil {
		s.fail(w, "indexHandler", err)
		return
	}
	next, err := s.store.NextInvoiceNumber(r.Context())
	if err != nil {
		s.fail(w, "indexHandler", err)
		return
	}
	f := s.exporter.Format
	rows := make([]historyRow, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, historyRow{
			ID:      inv.ID,
			Number:  inv.Number,
			Date:    f.Date(inv.Date),
			Summary: invoice.Summary(inv.Items),
			Total:   f.Amount(inv.Total),
		})
	}
	var buf bytes.Buffer
	if err := historyTemplate.Execute(&buf, map[string]any{"Invoices": rows, "Next": next}); err != nil {
		s.fail(w, "indexHandler", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) listHandler(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.sortedInvoices(r.Context())
	if err != nil {
		s.fail(w, "listHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (s *Server) getHandler(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.lookup(w, r, "getHandler")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.fail(w, "deleteHandler", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pdfHandler(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.lookup(w, r, "pdfHandler")
	if !ok {
		return
	}
	var pdfBuffer bytes.Buffer
	if err := s.exporter.WritePDF(&pdfBuffer, inv); err != nil {
		s.fail(w, "pdfHandler", err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.exporter.FileName(inv)))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(pdfBuffer.Len()))
	w.Write(pdfBuffer.Bytes())
}

func (s *Server) printHandler(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.lookup(w, r, "printHandler")
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := s.exporter.WriteHTML(&buf, inv); err != nil {
		s.fail(w, "printHandler", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) nextNumberHandler(w http.ResponseWriter, r *http.Request) {
	next, err := s.store.NextInvoiceNumber(r.Context())
	if err != nil {
		s.fail(w, "nextNumberHandler", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"next_number": next})
}

func (s *Server) sortedInvoices(ctx context.Context) ([]invoice.Invoice, error) {
	invoices, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	invoice.SortByDateDesc(invoices)
	return invoices, nil
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request, funcName string) (invoice.Invoice, bool) {
	id := mux.Vars(r)["id"]
	inv, found, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.fail(w, funcName, err)
		return invoice.Invoice{}, false
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("%v: %s", store.ErrNotFound, id)})
		return invoice.Invoice{}, false
	}
	return inv, true
}

func (s *Server) fail(w http.ResponseWriter, funcName string, err error) {
	logging.LogError(s.logger, "server", funcName, "request failed", nil, err)
	status := http.StatusInternalServerError
	if errors.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
