// Package receipt renders the plain-text receipt handed to a customer after
// checkout.
package receipt

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/rl1809/stockflow/internal/core/domain"
)

const (
	CurrencySymbol = "₦"
	width          = 40
)

var tmpl = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money":  Money,
	"center": center,
	"rule":   func() string { return rule },
	"trunc":  truncate,
}).Parse(`{{center .Business.Name}}
{{- with .Business.Address}}
{{center .}}{{end}}
{{- with .Business.Phone}}
{{center (printf "Tel: %s" .)}}{{end}}
{{rule}}
Receipt #: {{.Sale.ID}}
Date:      {{.Sale.CreatedAt.Format "2006-01-02 15:04"}}
Payment:   {{.Sale.PaymentMethod}}
{{rule}}
{{printf "%-24s %4s %10s" "Item" "Qty" "Amount"}}
{{- range .Sale.Items}}
{{printf "%-24s %4d %10s" (trunc .ProductName 24) .Quantity (money .LineTotal)}}
{{- end}}
{{rule}}
{{printf "%-28s %11s" "Subtotal:" (money .Sale.Subtotal)}}
{{printf "%-28s %11s" "Discount:" (money .Sale.Discount)}}
{{printf "%-28s %11s" "Tax (0%):" (money .Tax)}}
{{printf "%-28s %11s" "TOTAL:" (money .Sale.Total)}}
{{rule}}
{{center "Thank you for your purchase!"}}
{{center "Powered by StockFlow Inventory System"}}
`))

var rule = strings.Repeat("-", width)

// Render writes the receipt for sale, issued by business, to w.
func Render(w io.Writer, business domain.Business, sale domain.Sale) error {
	return tmpl.Execute(w, struct {
		Business domain.Business
		Sale     domain.Sale
		Tax      decimal.Decimal
	}{business, sale, decimal.Zero})
}

func Filename(sale domain.Sale) string {
	return fmt.Sprintf("receipt-%s.txt", sale.ID)
}

func Money(d decimal.Decimal) string {
	return CurrencySymbol + d.StringFixed(2)
}

func center(s string) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return fmt.Sprintf("%*s", (width-n)/2+n, s)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
