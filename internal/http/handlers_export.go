package http

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"
	"sync/atomic"

	"ctalara/internal/core"
	"ctalara/internal/engine"
	"ctalara/internal/export"
	applog "ctalara/internal/log"
)

// exportDashboard computes the caller's selection with the export view
// forced on, which guarantees the risk table is present.
func (s *Server) exportDashboard(w http.ResponseWriter, r *http.Request) (engine.Dashboard, bool) {
	sel := s.selectionFor(w, r).WithView(core.ViewExport, true)
	d, err := s.compute(r.Context(), sel)
	if err != nil {
		InternalServerError("Błąd obliczeń").Write(w)
		return engine.Dashboard{}, false
	}
	return d, true
}

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Cache-Control", "no-store")
}

// handleExportCSV serves the risk table as alara_score.csv.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	d, ok := s.exportDashboard(w, r)
	if !ok {
		return
	}

	var table engine.RiskTable
	if d.Risk != nil {
		table = *d.Risk
	}
	data, err := export.SerializeCSV(table)
	if err != nil {
		s.events.LogError(r.Context(), "CSV export failed", err, applog.ComponentHTTP, applog.OpExport, applog.NewFields())
		InternalServerError("Błąd eksportu").Write(w)
		return
	}

	atomic.AddInt64(&s.metrics.exports, 1)
	attachment(w, export.CSVContentType, export.CSVFilename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleExportXLSX serves the risk table, statistics and trends as a workbook.
func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	d, ok := s.exportDashboard(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, d); err != nil {
		s.events.LogError(r.Context(), "Workbook export failed", err, applog.ComponentHTTP, applog.OpExport, applog.NewFields())
		InternalServerError("Błąd eksportu").Write(w)
		return
	}

	atomic.AddInt64(&s.metrics.exports, 1)
	attachment(w, export.XLSXContentType, export.XLSXFilename)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleCreateReport accepts a selection (form or JSON body) and asks the
// report service for its files.
func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.reports == nil {
		ErrorResponse(http.StatusServiceUnavailable, "Raporty są wyłączone").Write(w)
		return
	}

	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Invalid report request body",
			applog.FieldError, err,
			"error_type", applog.ErrorTypeValidation)
		BadRequestError("Nieprawidłowe żądanie").Write(w)
		return
	}

	_, base := s.session(w, r)
	sel := ParseSelection(body.Values(), base, s.dataset)

	ticket, err := s.reports.RequestReport(r.Context(), s.dataset, sel)
	if err != nil {
		s.events.LogError(r.Context(), "Report request failed", err, applog.ComponentReport, applog.OpRender,
			applog.NewFields().WithClientIP(s.detector.ExtractClientIP(r)))
		InternalServerError("Nie udało się przygotować raportu").Write(w)
		return
	}
	atomic.AddInt64(&s.metrics.reports, 1)

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Report requested",
		applog.FieldReportID, ticket.ID,
		"queued", ticket.Queued)

	status := http.StatusCreated
	msg := "Raport " + ticket.ID + " został zapisany"
	if ticket.Queued {
		status = http.StatusAccepted
		msg = "Raport " + ticket.ID + " został zlecony"
	}

	if r.Header.Get("HX-Request") == "true" {
		var b strings.Builder
		b.WriteString(`<div class="success">`)
		b.WriteString(template.HTMLEscapeString(msg))
		if ticket.Report != nil && len(ticket.Report.Files) > 0 {
			b.WriteString(`: `)
			b.WriteString(template.HTMLEscapeString(strings.Join(ticket.Report.Files, ", ")))
		}
		b.WriteString(`</div>`)
		NewHTMXResponse().
			Status(status).
			TriggerReportRequested(ticket.ID, ticket.Queued).
			TriggerSuccessNotification(msg).
			BodyHTML(b.String()).
			Write(w)
		return
	}

	NewHTMXResponse().Status(status).JSON(ticket).Write(w)
}
