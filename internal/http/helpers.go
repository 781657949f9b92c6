package http

import (
	"html/template"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"ctalara/internal/core"
	"ctalara/internal/export"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// numberFormatter prints numbers with the separators of the display locale.
type numberFormatter struct {
	p *message.Printer
}

func newNumberFormatter(tag language.Tag) numberFormatter {
	return numberFormatter{p: message.NewPrinter(tag)}
}

// Fixed prints v with exactly decimals fraction digits.
func (f numberFormatter) Fixed(v float64, decimals int) string {
	return f.p.Sprint(number.Decimal(v,
		number.MinFractionDigits(decimals),
		number.MaxFractionDigits(decimals)))
}

// viewLabels are the panel titles of the dashboard.
var viewLabels = map[core.View]string{
	core.ViewTrends:     "Trendy CT",
	core.ViewStats:      "Analiza statystyczna",
	core.ViewProfile:    "Profil kraju",
	core.ViewDose:       "Dawka populacyjna (mSv)",
	core.ViewHeadToHead: "Porównanie 2 krajów",
	core.ViewRisk:       "ALARA Risk Score",
	core.ViewExport:     "Eksport CSV",
}

func templateFuncs(f numberFormatter) template.FuncMap {
	return template.FuncMap{
		"ct":    func(v float64) string { return f.Fixed(v, export.MeanDecimals) },
		"score": func(v float64) string { return f.Fixed(v, export.ScoreDecimals) },
		"fixed": f.Fixed,
		"percent": func(v float64) int {
			switch {
			case v <= 0:
				return 0
			case v >= 1:
				return 100
			}
			return int(v*100 + 0.5)
		},
	}
}
