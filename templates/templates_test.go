package templates

import (
	"bytes"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ttt-platform/trash2treasure/models"
)

func TestLoadParsesEveryPage(t *testing.T) {
	tmpl, err := Load()
	require.NoError(t, err)
	for _, name := range []string{"home", "login", "register", "track", "user_dashboard", "admin_dashboard", "profile"} {
		require.NotNil(t, tmpl.Lookup(name), name)
	}

	var buf bytes.Buffer
	require.NoError(t, tmpl.ExecuteTemplate(&buf, "login", &Page{
		Title:     "Log in",
		Flash:     &Flash{Kind: "error", Message: "<b>bad</b>"},
		CSRFToken: "tok123",
		Data:      map[string]interface{}{"Next": "", "Username": ""},
	}))
	require.Contains(t, buf.String(), `<input type="hidden" name="csrf_token" value="tok123">`)
	require.Contains(t, buf.String(), "&lt;b&gt;bad&lt;/b&gt;")
	require.Contains(t, buf.String(), models.DefaultSettings().SiteName)
}

func TestNewPager(t *testing.T) {
	p := NewPager(2, 10, 31, url.Values{"page": {"2"}, "status": {"pending"}, "search": {""}})
	require.Equal(t, 4, p.TotalPages)
	require.Equal(t, 2, p.Page)
	require.EqualValues(t, "status=pending&", p.Query)

	p = NewPager(1, 10, 0, url.Values{})
	require.Zero(t, p.TotalPages)
	require.Empty(t, p.Query)
}

func TestFmtTime(t *testing.T) {
	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	require.Equal(t, "2024-05-01 09:30", fmtTime(ts))
	require.Equal(t, "2024-05-01 09:30", fmtTime(&ts))
	var missing *time.Time
	require.Equal(t, "-", fmtTime(missing))
	require.Equal(t, "-", fmtTime(time.Time{}))
}
