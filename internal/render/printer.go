// Package render prints streaming search results to a terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/searchgal/searchgal/internal/search"
)

// Printer writes search events as they arrive. Colours are only emitted
// when the writer is a terminal.
type Printer struct {
	w         io.Writer
	game      string
	hideEmpty bool

	completed int
	total     int
	platforms int
	items     int
	failed    int

	header  lipgloss.Style
	colors  map[search.Color]lipgloss.Style
	dim     lipgloss.Style
	link    lipgloss.Style
	errText lipgloss.Style
	summary lipgloss.Style
}

// Options tunes the printer.
type Options struct {
	// HideEmpty skips platforms that returned no items and no error.
	HideEmpty bool
}

// NewPrinter creates a printer for one search of game.
func NewPrinter(w io.Writer, game string, opts Options) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:         w,
		game:      game,
		hideEmpty: opts.HideEmpty,
		header:    r.NewStyle().Bold(true),
		colors: map[search.Color]lipgloss.Style{
			search.ColorLime:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
			search.ColorWhite: r.NewStyle().Bold(true).Foreground(lipgloss.Color("15")),
			search.ColorGold:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
			search.ColorRed:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		},
		dim:     r.NewStyle().Foreground(lipgloss.Color("240")),
		link:    r.NewStyle().Foreground(lipgloss.Color("33")),
		errText: r.NewStyle().Foreground(lipgloss.Color("9")),
		summary: r.NewStyle().Bold(true).Foreground(lipgloss.Color("32")),
	}
}

// Callbacks returns search callbacks that print to the printer.
func (p *Printer) Callbacks() search.Callbacks {
	return search.Callbacks{
		OnTotal:          p.Total,
		OnProgress:       p.Progress,
		OnPlatformResult: p.Result,
		OnComplete:       p.Complete,
		OnError:          p.Error,
	}
}

// Total prints the search header.
func (p *Printer) Total(total int) {
	p.total = total
	fmt.Fprintln(p.w, p.header.Render(fmt.Sprintf("Searching %d platforms for %q", total, p.game)))
}

// Progress records progress. The counter is shown with the next result.
func (p *Printer) Progress(completed, total int) {
	p.completed = completed
	p.total = total
}

// Result prints one platform block.
func (p *Printer) Result(result search.PlatformResult) {
	p.platforms++
	p.items += len(result.Items)
	if result.Error != "" {
		p.failed++
	}
	if p.hideEmpty && result.Error == "" && len(result.Items) == 0 {
		return
	}

	style, ok := p.colors[result.Color]
	if !ok {
		style = p.colors[search.ColorWhite]
	}

	var b strings.Builder
	b.WriteString(p.dim.Render(fmt.Sprintf("[%d/%d]", p.completed, p.total)))
	b.WriteString(" ")
	b.WriteString(style.Render(result.Name))
	if result.URL != "" {
		b.WriteString(" ")
		b.WriteString(p.link.Render(result.URL))
	}
	b.WriteString("\n")

	switch {
	case result.Error != "":
		b.WriteString("  ")
		b.WriteString(p.errText.Render("error: " + result.Error))
		b.WriteString("\n")
	case len(result.Items) == 0:
		b.WriteString("  ")
		b.WriteString(p.dim.Render("no results"))
		b.WriteString("\n")
	default:
		for _, item := range result.Items {
			b.WriteString("  - ")
			b.WriteString(item.Title)
			b.WriteString("  ")
			b.WriteString(p.link.Render(item.URL))
			if len(item.Tags) > 0 {
				b.WriteString(" ")
				b.WriteString(p.dim.Render("[" + strings.Join(item.Tags, ", ") + "]"))
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprint(p.w, b.String())
}

// Complete prints the summary line.
func (p *Printer) Complete() {
	line := fmt.Sprintf("Done: %d items from %d platforms", p.items, p.platforms)
	if p.failed > 0 {
		line += fmt.Sprintf(", %d failed", p.failed)
	}
	fmt.Fprintln(p.w, p.summary.Render(line))
}

// Error prints the terminal error.
func (p *Printer) Error(err error) {
	if search.IsAborted(err) {
		fmt.Fprintln(p.w, p.dim.Render("Search cancelled"))
		return
	}
	fmt.Fprintln(p.w, p.errText.Render("Search failed: "+err.Error()))
}

// Counts returns platforms and items printed so far.
func (p *Printer) Counts() (platforms, items int) {
	return p.platforms, p.items
}
