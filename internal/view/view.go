// Package view renders the server-side HTML pages.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"market-web/internal/model"
	"market-web/internal/session"
	"market-web/internal/workflow"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names.
const (
	Home         = "home"
	Catalog      = "catalog"
	Product      = "product"
	Cart         = "cart"
	Checkout     = "checkout"
	OrderLookup  = "order_lookup"
	Order        = "order"
	AdminLogin   = "admin_login"
	AdminOrders  = "admin_orders"
	AdminOrder   = "admin_order"
	AdminContent = "admin_content"
	Unavailable  = "unavailable"
	NotFound     = "not_found"
)

const layoutFile = "templates/layout.html"

// Page is the data every template receives. Data holds the page-specific
// payload.
type Page struct {
	Title string
	Flash *session.Flash
	Admin bool
	Data  any
}

// OrderDetail is the customer order view; the phone is carried into the
// cancel form.
type OrderDetail struct {
	Order *model.Order
	Phone string
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses every embedded page against the shared layout.
func New() (*Renderer, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, f := range files {
		if f == layoutFile {
			continue
		}
		name := strings.TrimSuffix(path.Base(f), ".html")
		t, err := template.New(path.Base(layoutFile)).Funcs(funcs).ParseFS(templateFS, layoutFile, f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render executes page into a buffer and writes it with status. Nothing is
// written when execution fails.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, p Page) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

var funcs = template.FuncMap{
	"won":             Won,
	"wonPtr":          wonPtr,
	"datetime":        datetime,
	"datetimePtr":     datetimePtr,
	"intPtr":          intPtr,
	"boolPtr":         boolPtr,
	"joinInts":        joinInts,
	"orderPath":       workflow.OrderPath,
	"adminOrderPath":  workflow.AdminOrderPath,
	"shortageActions": shortageActions,
}

// Won formats an amount with thousands separators. Whole amounts carry no
// fraction digits.
func Won(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.Equal(d.Truncate(0)) {
		s = d.StringFixed(0)
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

func wonPtr(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return Won(*d)
}

func datetime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

func datetimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return datetime(*t)
}

func intPtr(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func boolPtr(b *bool) bool { return b != nil && *b }

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}

func shortageActions() []string {
	return []string{model.ShortageFulfillPartial, model.ShortageSubstitute, model.ShortageCancelItem}
}
