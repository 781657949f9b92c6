package engine

import (
	"ctalara/internal/core"
)

// Dashboard holds every view enabled by a selection. Views that are switched
// off stay nil.
type Dashboard struct {
	Selection  core.Selection `json:"-"`
	Filtered   int            `json:"filtered_rows"`
	Trends     []Series       `json:"trends,omitempty"`
	Stats      []Stat         `json:"stats,omitempty"`
	Profile    *Series        `json:"profile,omitempty"`
	Dose       []Point        `json:"dose,omitempty"`
	HeadToHead []Series       `json:"head_to_head,omitempty"`
	Risk       *RiskTable     `json:"risk,omitempty"`
}

// Empty reports whether the selection matched no rows at all.
func (d Dashboard) Empty() bool { return d.Filtered == 0 }

// Compute derives the enabled views of sel from ds. The selection is
// normalized against ds first, so unknown countries and out-of-span years
// never reach the reductions. The export view needs the risk table and
// computes it even when the risk panel itself is off.
func Compute(ds *core.Dataset, sel core.Selection) (Dashboard, error) {
	sel = sel.Normalize(ds)
	filtered := Filter(ds, sel.Countries, sel.Years)

	d := Dashboard{Selection: sel, Filtered: len(filtered)}

	var trends []Series
	if sel.Views.Enabled(core.ViewTrends) || sel.Views.Enabled(core.ViewDose) {
		trends = MeanByCountryYear(filtered)
	}
	if sel.Views.Enabled(core.ViewTrends) {
		d.Trends = trends
	}
	if sel.Views.Enabled(core.ViewStats) {
		d.Stats = SummaryStats(filtered)
	}
	if sel.Views.Enabled(core.ViewProfile) && sel.ProfileCountry != "" {
		p := Profile(ds, sel.ProfileCountry)
		d.Profile = &p
	}
	if sel.Views.Enabled(core.ViewDose) {
		dose, err := Dose(YearlyMeans(trends), sel.DoseFactor)
		if err != nil {
			return Dashboard{}, err
		}
		d.Dose = dose
	}
	if sel.Views.Enabled(core.ViewHeadToHead) && sel.CompareA != "" {
		pair := HeadToHead(ds, sel.CompareA, sel.CompareB)
		d.HeadToHead = pair[:]
	}
	if sel.Views.Enabled(core.ViewRisk) || sel.Views.Enabled(core.ViewExport) {
		risk := RiskScore(filtered)
		d.Risk = &risk
	}
	return d, nil
}

// EnabledViews lists the views switched on in sel, in display order.
func EnabledViews(sel core.Selection) []string {
	var out []string
	for _, v := range core.AllViews {
		if sel.Views.Enabled(v) {
			out = append(out, string(v))
		}
	}
	return out
}
