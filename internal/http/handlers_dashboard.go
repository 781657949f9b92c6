package http

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"ctalara/internal/chart"
	"ctalara/internal/core"
	"ctalara/internal/engine"
	applog "ctalara/internal/log"
)

type countryOption struct {
	Name     string
	Selected bool
}

type viewToggle struct {
	Key   string
	Label string
	On    bool
}

// pageData feeds index.html and the views partial.
type pageData struct {
	Known     []string
	Countries []countryOption
	MinYear   int
	MaxYear   int
	Sel       core.Selection
	Toggles   []viewToggle
	On        map[string]bool
	D         engine.Dashboard
	Charts    map[string]template.URL
	ExportCSV template.URL
	ExportXLS template.URL
	DoseMin   float64
	DoseMax   float64
	Reports   bool
	Async     bool
}

// compute derives the dashboard and logs the computation.
func (s *Server) compute(ctx context.Context, sel core.Selection) (engine.Dashboard, error) {
	start := time.Now()
	d, err := engine.Compute(s.dataset, sel)
	if err != nil {
		s.events.LogError(ctx, "Dashboard computation failed", err, applog.ComponentEngine, applog.OpCompute, applog.NewFields())
		return engine.Dashboard{}, err
	}
	atomic.AddInt64(&s.metrics.computations, 1)
	s.events.LogDashboardComputed(ctx,
		d.Selection.Countries, d.Selection.Years.From, d.Selection.Years.To,
		d.Selection.DoseFactor, engine.EnabledViews(d.Selection),
		time.Since(start).Milliseconds())
	return d, nil
}

// selectionFor applies the query to the caller's session and stores the
// result as the session's new state.
func (s *Server) selectionFor(w http.ResponseWriter, r *http.Request) core.Selection {
	id, base := s.session(w, r)
	sel := ParseSelection(r.URL.Query(), base, s.dataset)
	s.sessions.Save(id, sel)
	return sel
}

func (s *Server) buildPage(d engine.Dashboard) pageData {
	sel := d.Selection
	span := s.dataset.YearSpan()
	known := s.dataset.Countries()

	selected := make(map[string]bool, len(sel.Countries))
	for _, c := range sel.Countries {
		selected[c] = true
	}
	countries := make([]countryOption, 0, len(known))
	for _, c := range known {
		countries = append(countries, countryOption{Name: c, Selected: selected[c]})
	}

	on := make(map[string]bool, len(core.AllViews))
	toggles := make([]viewToggle, 0, len(core.AllViews))
	for _, v := range core.AllViews {
		on[string(v)] = sel.Views.Enabled(v)
		toggles = append(toggles, viewToggle{Key: string(v), Label: viewLabels[v], On: sel.Views.Enabled(v)})
	}

	query := EncodeSelection(sel)
	charts := make(map[string]template.URL, 4)
	for _, k := range []chart.Kind{chart.KindTrends, chart.KindProfile, chart.KindDose, chart.KindHeadToHead} {
		charts[string(k)] = template.URL("/charts/" + string(k) + ".png?" + query)
	}

	return pageData{
		Known:     known,
		Countries: countries,
		MinYear:   span.From,
		MaxYear:   span.To,
		Sel:       sel,
		Toggles:   toggles,
		On:        on,
		D:         d,
		Charts:    charts,
		ExportCSV: template.URL("/export/alara_score.csv?" + query),
		ExportXLS: template.URL("/export/alara_report.xlsx?" + query),
		DoseMin:   core.MinDoseFactor,
		DoseMax:   core.MaxDoseFactor,
		Reports:   s.reports != nil,
		Async:     s.reports != nil && s.reports.Async(),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.templates == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			"error_type", applog.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	d, err := s.compute(r.Context(), s.selectionFor(w, r))
	if err != nil {
		InternalServerError("Błąd obliczeń").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", s.buildPage(d)); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Index template execution failed", applog.FieldError, err, "template", "index.html")
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

// handleViews renders the enabled views as an HTMX partial.
func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.templates == nil {
		InternalServerError("Szablony nie zostały wczytane").Write(w)
		return
	}

	d, err := s.compute(r.Context(), s.selectionFor(w, r))
	if err != nil {
		InternalServerError("Błąd obliczeń").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "views", s.buildPage(d)); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Views template execution failed", applog.FieldError, err, "template", "views")
		InternalServerError("Błąd renderowania widoków").Write(w)
		return
	}

	query := EncodeSelection(d.Selection)
	NewHTMXResponse().
		Header("HX-Push-Url", "/?"+query).
		Header("Cache-Control", "no-store").
		TriggerSelectionChanged(query).
		BodyHTML(buf.String()).
		Write(w)
}

// handleChart renders /charts/{kind}.png for the selection in the query.
// The chart's own view is switched on regardless of the toggles.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	file := r.PathValue("file")
	kind, ok := chart.ParseKind(strings.TrimSuffix(file, ".png"))
	if !ok || !strings.HasSuffix(file, ".png") {
		NotFoundError("Nieznany wykres").Write(w)
		return
	}

	_, base := s.session(w, r)
	sel := ParseSelection(r.URL.Query(), base, s.dataset)
	sel = sel.WithView(chartView(kind), true)

	d, err := s.compute(r.Context(), sel)
	if err != nil {
		InternalServerError("Błąd obliczeń").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := renderChart(&buf, kind, d); err != nil {
		s.events.LogError(r.Context(), "Chart rendering failed", err, applog.ComponentHTTP, applog.OpRender,
			applog.NewFields().WithComponent(applog.ComponentHTTP))
		InternalServerError("Błąd renderowania wykresu").Write(w)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = buf.WriteTo(w)
}

func chartView(k chart.Kind) core.View {
	switch k {
	case chart.KindProfile:
		return core.ViewProfile
	case chart.KindDose:
		return core.ViewDose
	case chart.KindHeadToHead:
		return core.ViewHeadToHead
	}
	return core.ViewTrends
}

func renderChart(buf *bytes.Buffer, kind chart.Kind, d engine.Dashboard) error {
	switch kind {
	case chart.KindProfile:
		var series []engine.Series
		if d.Profile != nil {
			series = append(series, *d.Profile)
		}
		return chart.Lines(buf, series, chart.DefaultOptions("Profil kraju: "+d.Selection.ProfileCountry, "CT / 1000"))
	case chart.KindDose:
		return chart.Dose(buf, d.Dose, chart.DefaultOptions("Hipotetyczna dawka populacyjna", "mSv / 1000"))
	case chart.KindHeadToHead:
		title := "Porównanie: " + d.Selection.CompareA + " vs " + d.Selection.CompareB
		return chart.Lines(buf, d.HeadToHead, chart.DefaultOptions(title, "CT / 1000"))
	}
	return chart.Lines(buf, d.Trends, chart.DefaultOptions("Liczba badań CT na 1000 mieszkańców", "CT / 1000"))
}

// selectionJSON is the wire form of a selection in API responses.
type selectionJSON struct {
	Countries      []string `json:"countries"`
	YearFrom       int      `json:"year_from"`
	YearTo         int      `json:"year_to"`
	Views          []string `json:"views"`
	ProfileCountry string   `json:"profile_country"`
	CompareA       string   `json:"compare_a"`
	CompareB       string   `json:"compare_b"`
	DoseFactor     float64  `json:"dose_factor"`
}

type dashboardResponse struct {
	Selection selectionJSON `json:"selection"`
	Empty     bool          `json:"empty"`
	engine.Dashboard
}

func toSelectionJSON(sel core.Selection) selectionJSON {
	countries := sel.Countries
	if countries == nil {
		countries = []string{}
	}
	views := engine.EnabledViews(sel)
	if views == nil {
		views = []string{}
	}
	return selectionJSON{
		Countries:      countries,
		YearFrom:       sel.Years.From,
		YearTo:         sel.Years.To,
		Views:          views,
		ProfileCountry: sel.ProfileCountry,
		CompareA:       sel.CompareA,
		CompareB:       sel.CompareB,
		DoseFactor:     sel.DoseFactor,
	}
}

// handleAPIDashboard returns every enabled view of the selection as JSON.
func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	d, err := s.compute(r.Context(), s.selectionFor(w, r))
	if err != nil {
		NewHTMXResponse().Status(http.StatusInternalServerError).JSON(map[string]string{"error": err.Error()}).Write(w)
		return
	}

	NewHTMXResponse().
		Header("Cache-Control", "no-store").
		JSON(dashboardResponse{Selection: toSelectionJSON(d.Selection), Empty: d.Empty(), Dashboard: d}).
		Write(w)
}
