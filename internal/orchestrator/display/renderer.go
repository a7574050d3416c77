// Package display renders the scheduler's live status block.
//
// Every frame prints the projects that finished since the previous frame,
// a "Working: processed/total" counter and one status line per in-flight
// task. On a terminal the in-flight lines and the counter are erased and
// redrawn in place each frame; on any other writer only finished projects
// and counter changes are printed.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"github.com/Iron-Ham/depo/internal/util"
)

// SeparatorWidth is the width of the dashed separator line.
const SeparatorWidth = 40

// Mode selects how frames are written.
type Mode int

const (
	// ModeAuto redraws in place when the writer is a terminal.
	ModeAuto Mode = iota
	// ModeInteractive always redraws in place.
	ModeInteractive
	// ModePlain never moves the cursor.
	ModePlain
)

// Config holds configuration options for the Renderer.
type Config struct {
	Mode Mode
	// DefaultWidth is used when the terminal width cannot be determined.
	DefaultWidth int
}

// DefaultConfig returns sensible defaults for display configuration.
func DefaultConfig() Config {
	return Config{
		Mode:         ModeAuto,
		DefaultWidth: 120,
	}
}

// Entry is one project line.
type Entry struct {
	Prefix string
	Status string
	// Err is the error text of a failed attempt, or the carried-over error
	// of a task that is retrying.
	Err    string
	Failed bool
	Stuck  bool
}

// Frame is everything drawn in one redraw.
type Frame struct {
	// Completed are the projects that finished since the last frame.
	// Successful ones are only passed in when reportable.
	Completed []Entry
	Processed int
	Total     int
	Live      []Entry
}

// Renderer writes frames to a terminal or log stream.
// It is not safe for concurrent use.
type Renderer struct {
	out         io.Writer
	interactive bool
	width       int
	fd          int

	drawn         int
	lastProcessed int
	lastTotal     int

	okStyle    lipgloss.Style
	failStyle  lipgloss.Style
	stuckStyle lipgloss.Style
	dimStyle   lipgloss.Style
}

// NewRenderer creates a renderer writing to out.
func NewRenderer(out io.Writer, cfg Config) *Renderer {
	if cfg.DefaultWidth <= 0 {
		cfg.DefaultWidth = DefaultConfig().DefaultWidth
	}

	r := &Renderer{
		out:           out,
		width:         cfg.DefaultWidth,
		fd:            -1,
		lastProcessed: -1,
	}

	if f, ok := out.(*os.File); ok {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			r.fd = fd
		}
	}

	switch cfg.Mode {
	case ModeInteractive:
		r.interactive = true
	case ModePlain:
		r.interactive = false
	default:
		r.interactive = r.fd >= 0
	}

	lr := lipgloss.NewRenderer(out)
	r.okStyle = lr.NewStyle().Foreground(lipgloss.Color("2"))
	r.failStyle = lr.NewStyle().Foreground(lipgloss.Color("1"))
	r.stuckStyle = lr.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	r.dimStyle = lr.NewStyle().Faint(true)
	return r
}

// Begin prints the opening separator.
func (r *Renderer) Begin() {
	fmt.Fprintln(r.out, strings.Repeat("-", SeparatorWidth))
}

// Draw erases the previous frame's live block and writes f.
func (r *Renderer) Draw(f Frame) {
	var b strings.Builder

	if r.interactive {
		for i := 0; i < r.drawn; i++ {
			b.WriteString(ansi.CursorUp(1))
			b.WriteString(ansi.EraseEntireLine)
		}
		r.drawn = 0
	}

	for _, e := range f.Completed {
		r.writeCompleted(&b, e)
	}

	if r.interactive {
		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", SeparatorWidth) + "\n")
		fmt.Fprintf(&b, "Working: %d/%d\n", f.Processed, f.Total)
		b.WriteString("\n")
		r.drawn = 4

		width := r.currentWidth()
		for _, e := range f.Live {
			b.WriteString(util.TruncateANSI(r.liveLine(e), width) + "\n")
			r.drawn++
		}
	} else if f.Processed != r.lastProcessed || f.Total != r.lastTotal {
		fmt.Fprintf(&b, "Working: %d/%d\n", f.Processed, f.Total)
	}
	r.lastProcessed, r.lastTotal = f.Processed, f.Total

	_, _ = io.WriteString(r.out, b.String())
}

func (r *Renderer) writeCompleted(b *strings.Builder, e Entry) {
	switch {
	case e.Stuck:
		fmt.Fprintf(b, "%s %s %s\n", e.Prefix, r.failStyle.Render(e.Status), r.stuckStyle.Render("STUCK"))
		writeIndented(b, e.Err)
	case e.Failed:
		fmt.Fprintf(b, "%s %s\n", e.Prefix, r.failStyle.Render(e.Status))
		writeIndented(b, e.Err)
	default:
		fmt.Fprintf(b, "%s %s\n", e.Prefix, r.okStyle.Render(e.Status))
	}
}

func (r *Renderer) liveLine(e Entry) string {
	line := e.Prefix + " " + e.Status
	if last := util.LastLine(e.Err); last != "" {
		line += " " + r.dimStyle.Render("(last error: "+last+")")
	}
	return line
}

func (r *Renderer) currentWidth() int {
	if r.fd >= 0 {
		if w, _, err := term.GetSize(r.fd); err == nil && w > 0 {
			return w
		}
	}
	return r.width
}

func writeIndented(b *strings.Builder, text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString("    " + line + "\n")
	}
}
