// Package templates holds the HTML fragments served by the web layer.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// PreviewParams describes one preview table.
type PreviewParams struct {
	Title   string
	Status  string // e.g. "Converted: 1200 rows"
	Columns []string
	Rows    [][]string
	Total   int // Rows available before the preview cap
}

// Showing returns the "showing N of M" caption.
func (p PreviewParams) Showing() string {
	return fmt.Sprintf("showing %d of %d rows", len(p.Rows), p.Total)
}

// PreviewTable renders a capped table of rows with a status caption.
func PreviewTable(p PreviewParams) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		b.WriteString(`<section class="preview">`)
		if p.Title != "" {
			fmt.Fprintf(&b, `<h2>%s</h2>`, templ.EscapeString(p.Title))
		}
		if p.Status != "" {
			fmt.Fprintf(&b, `<p class="status">%s</p>`, templ.EscapeString(p.Status))
		}
		fmt.Fprintf(&b, `<p class="count">%s</p>`, templ.EscapeString(p.Showing()))

		b.WriteString(`<table><thead><tr>`)
		for _, col := range p.Columns {
			fmt.Fprintf(&b, `<th>%s</th>`, templ.EscapeString(col))
		}
		b.WriteString(`</tr></thead><tbody>`)
		for _, row := range p.Rows {
			b.WriteString(`<tr>`)
			for _, cell := range row {
				if cell == "" {
					b.WriteString(`<td class="empty"></td>`)
					continue
				}
				fmt.Fprintf(&b, `<td>%s</td>`, templ.EscapeString(cell))
			}
			b.WriteString(`</tr>`)
		}
		b.WriteString(`</tbody></table></section>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ErrorAlert renders a coded error message for HTMX swaps.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-error" role="alert"><strong>%s</strong> <span class="code">(%s)</span><p>%s</p></div>`,
			templ.EscapeString(message),
			templ.EscapeString(code),
			templ.EscapeString(action),
		)
		return err
	})
}
