package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

// Renderer implements echo.Renderer over the embedded template set.
type Renderer struct {
	templates *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	funcs := template.FuncMap{
		"money": formatMoney,
		"date":  formatDate,
	}
	tmpl, err := template.New("beerich").Funcs(funcs).ParseFS(templateFS, "templates/*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Render renders a named template.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// formatMoney renders an amount with the record's display currency. The
// currency code affects formatting only.
func formatMoney(amount decimal.Decimal, code string) string {
	if symbol, ok := currencySymbols[code]; ok {
		return symbol + amount.StringFixed(2)
	}
	return code + " " + amount.StringFixed(2)
}

func formatDate(t time.Time) string {
	return t.Format("1/2/2006")
}
