// Package templates holds the server-rendered pages.
package templates

import (
	"embed"
	"html/template"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ttt-platform/trash2treasure/config"
	"github.com/ttt-platform/trash2treasure/models"
)

//go:embed *.html
var files embed.FS

// Flash is a one-shot message shown on the next page.
type Flash struct {
	Kind    string
	Message string
}

// Page is the data every template receives.
type Page struct {
	Title     string
	User      *models.User
	Settings  *models.SystemSettings
	Flash     *Flash
	CSRFToken string
	Data      interface{}
}

// Pager drives the "pager" partial.
type Pager struct {
	Page       int
	TotalPages int
	Query      template.URL // preserved filters, ends with '&' when not empty
}

// NewPager builds a pager; page is dropped from q so links can set it.
func NewPager(page, pageSize int, total int64, q url.Values) Pager {
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	kept := url.Values{}
	for k, v := range q {
		if k != "page" && len(v) > 0 && v[0] != "" {
			kept[k] = v
		}
	}
	query := kept.Encode()
	if query != "" {
		query += "&"
	}
	return Pager{Page: page, TotalPages: pages, Query: template.URL(query)}
}

// Load parses every embedded page.
func Load() (*template.Template, error) {
	return template.New("pages").Funcs(funcs()).ParseFS(files, "*.html")
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"siteName": func(p *Page) string {
			if p != nil && p.Settings != nil && p.Settings.SiteName != "" {
				return p.Settings.SiteName
			}
			return models.DefaultSettings().SiteName
		},
		"fmtTime": fmtTime,
		"kg": func(d decimal.NullDecimal) string {
			if !d.Valid {
				return "-"
			}
			return d.Decimal.StringFixed(2)
		},
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
		"inc":   func(n int) int { return n + 1 },
		"dec":   func(n int) int { return n - 1 },
		"mediaURL": func(rel string) string {
			return strings.TrimRight(config.Get().MediaURL, "/") + "/" + path.Clean(rel)
		},
	}
}

func fmtTime(v interface{}) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04")
	case *time.Time:
		if t == nil {
			return "-"
		}
		return fmtTime(*t)
	}
	return "-"
}
