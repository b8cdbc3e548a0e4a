// Package web serves the operator dashboard: a live feed of privacy scans,
// route decisions and gate verdicts read from the websocket hub.
package web

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
	"time"
)

//go:embed dashboard.html
var dashboardHTML string

var dashboardTemplate = template.Must(template.New("dashboard").Parse(dashboardHTML))

// DashboardData fills the page template.
type DashboardData struct {
	Title   string
	Version string
	WSPath  string
}

// Dashboard renders the page once and serves it with caching disabled.
type Dashboard struct {
	page     []byte
	modified time.Time
}

// NewDashboard renders the dashboard for the given websocket path.
func NewDashboard(data DashboardData) (*Dashboard, error) {
	if data.Title == "" {
		data.Title = "SecureClaw"
	}
	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return &Dashboard{page: buf.Bytes(), modified: time.Now()}, nil
}

// ServeHTTP serves the rendered dashboard.
func (d *Dashboard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	http.ServeContent(w, r, "dashboard.html", d.modified, bytes.NewReader(d.page))
}
