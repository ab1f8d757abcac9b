// Package dates is the single boundary where client supplied calendar dates are
// converted to the ISO form stored in the database.
package dates

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultLayout accepts day-month-year with one or two digit day and month.
	DefaultLayout = "2-1-2006"
	// DefaultDisplay is how DefaultLayout is described to clients.
	DefaultDisplay = "d-m-Y"
	// ISOLayout is the canonical storage form.
	ISOLayout = "2006-01-02"
)

// Parser converts dates written in Layout to ISO form.
type Parser struct {
	layout  string
	display string
}

// NewParser returns a parser for layout; empty arguments fall back to the defaults.
func NewParser(layout, display string) *Parser {
	if layout == "" {
		layout = DefaultLayout
		if display == "" {
			display = DefaultDisplay
		}
	}
	if display == "" {
		display = layout
	}
	return &Parser{layout: layout, display: display}
}

// Normalize parses s strictly against the layout and returns it as YYYY-MM-DD.
func (p *Parser) Normalize(s string) (string, error) {
	t, err := p.Parse(s)
	if err != nil {
		return "", err
	}
	return t.Format(ISOLayout), nil
}

// Parse parses s strictly against the layout. Surrounding whitespace is not allowed.
func (p *Parser) Parse(s string) (time.Time, error) {
	if s == "" || strings.TrimSpace(s) != s {
		return time.Time{}, fmt.Errorf("date %q does not match format %s", s, p.display)
	}
	t, err := time.Parse(p.layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q does not match format %s: %w", s, p.display, err)
	}
	return t, nil
}

// DisplayFormat is the human readable layout used in validation messages.
func (p *Parser) DisplayFormat() string {
	return p.display
}
