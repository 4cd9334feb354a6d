package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Harshitk-cp/veritas/internal/domain"
	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// printer renders results as text or indented JSON. Colour follows
// fatih/color's own NO_COLOR and terminal detection.
type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(w io.Writer, asJSON bool) *printer {
	return &printer{w: w, json: asJSON}
}

func (p *printer) JSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.w, string(b))
	return err
}

// Result prints v as JSON, or calls text in text mode.
func (p *printer) Result(v any, text func()) error {
	if p.json {
		return p.JSON(v)
	}
	text()
	return nil
}

func (p *printer) Success(format string, a ...any) {
	green.Fprintf(p.w, "✓ "+format+"\n", a...)
}

func (p *printer) Line(format string, a ...any) {
	fmt.Fprintf(p.w, format+"\n", a...)
}

func stateColor(s domain.ClaimState) *color.Color {
	switch s {
	case domain.StateVerified:
		return green
	case domain.StateWatching:
		return cyan
	case domain.StateDeprecated:
		return red
	default:
		return yellow
	}
}

func trustColor(t domain.TrustState) *color.Color {
	switch t {
	case domain.TrustVerified:
		return green
	case domain.TrustRejected:
		return red
	default:
		return yellow
	}
}

func (p *printer) Claim(c *domain.KnowledgeClaim) {
	state := stateColor(c.State).Sprintf("%-13s", c.State)
	line := fmt.Sprintf("%s  %s  %-10s %3d  %s", c.ID, state, c.Branch, c.Confidence, c.Statement)
	if c.IsInvalidated() {
		line += faint.Sprintf("  (invalidated by %s: %s)", c.InvalidatedBy, c.InvalidationReason)
	}
	p.Line("%s", line)
}

func (p *printer) Audit(entries []domain.AuditEntry) {
	for _, e := range entries {
		change := string(e.Action)
		if e.FromState != e.ToState && e.FromState != "" {
			change += fmt.Sprintf(" %s -> %s", e.FromState, e.ToState)
		}
		if e.OldConfidence != e.NewConfidence {
			change += fmt.Sprintf(" (%d -> %d)", e.OldConfidence, e.NewConfidence)
		}
		who := strings.TrimSpace(e.Agent + " " + e.Trigger)
		p.Line("  %s  %s  %s  %s", faint.Sprint(e.CreatedAt.Format("2006-01-02 15:04:05")), change, who, e.Reason)
	}
}

func (p *printer) Fact(f *domain.Fact) {
	p.Line("%s  %s  %-12s %-10s %s", f.ID, trustColor(f.TrustState).Sprintf("%-8s", f.TrustState), f.Type, f.UserID, f.Content)
}

func printError(w io.Writer, err error) {
	red.Fprintf(w, "error: %v\n", err)
}
