// Package web holds the dashboard page, its HTMX partials and the stylesheet.
package web

import "embed"

// TemplatesFS holds index.html and the views partial.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS is served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
