package render

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	"github.com/kayz/kidsearch/internal/cache"
	"github.com/kayz/kidsearch/internal/quota"
	"github.com/kayz/kidsearch/internal/search"
)

// Printer writes responses to a terminal, styling markdown when the output
// is a TTY and writing it raw otherwise.
type Printer struct {
	out      io.Writer
	renderer *glamour.TermRenderer
}

func NewPrinter(out io.Writer) *Printer {
	p := &Printer{out: out}

	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return p
	}
	width := 80
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
		width = w
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err == nil {
		p.renderer = renderer
	}
	return p
}

func (p *Printer) markdown(md string) error {
	if p.renderer != nil {
		if styled, err := p.renderer.Render(md); err == nil {
			md = styled
		}
	}
	_, err := io.WriteString(p.out, md)
	return err
}

// Results prints a response, or the empty state when it has no items.
func (p *Printer) Results(resp *search.AggregatedResponse, lang string) error {
	return p.markdown(Markdown(resp, lang))
}

// Error prints the friendly form of err.
func (p *Printer) Error(err error, lang string) {
	if IsQuiet(err) {
		return
	}
	fmt.Fprintln(p.out, color.New(color.FgYellow, color.Bold).Sprint(FriendlyError(err, lang)))
}

// SourcesTable lists the configured secondary sources.
func SourcesTable(w io.Writer, sources []*search.Source) error {
	table := tablewriter.NewWriter(w)
	if err := table.Append([]string{"ID", "Name", "Type", "Weight", "Enabled", "Web", "Images", "Breaker"}); err != nil {
		return err
	}
	for _, s := range sources {
		row := []string{
			s.ID(),
			s.Name(),
			s.Type(),
			strconv.FormatFloat(s.Weight(), 'f', 2, 64),
			yesNo(s.Enabled()),
			yesNo(s.SupportsWeb()),
			yesNo(s.SupportsImages()),
			s.BreakerState(),
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// CacheTable shows the size of each result cache.
func CacheTable(w io.Writer, stats []cache.Stats) error {
	table := tablewriter.NewWriter(w)
	if err := table.Append([]string{"Cache", "Entries", "Capacity", "Enabled"}); err != nil {
		return err
	}
	for _, s := range stats {
		if err := table.Append([]string{s.Kind, strconv.Itoa(s.Size), strconv.Itoa(s.MaxSize), yesNo(s.Enabled)}); err != nil {
			return err
		}
	}
	return table.Render()
}

// QuotaLine formats the quota, colored by how much of it is left.
func QuotaLine(u quota.Usage) string {
	c := color.New(color.FgGreen, color.Bold)
	switch {
	case u.Remaining == 0:
		c = color.New(color.FgRed, color.Bold)
	case u.Limit > 0 && u.Remaining*10 <= u.Limit:
		c = color.New(color.FgYellow, color.Bold)
	}
	return fmt.Sprintf("%s %d/%d used, %s remaining (day %s)",
		color.New(color.FgHiBlack).Sprint("quota:"), u.Used, u.Limit, c.Sprint(u.Remaining), u.ResetDate)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
