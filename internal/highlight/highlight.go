// Package highlight classifies log lines by severity keywords and renders them
// with terminal styles.
package highlight

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type Severity int

const (
	Normal Severity = iota
	Debug
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Debug:
		return "debug"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "normal"
	}
}

var severityKeywords = []struct {
	severity Severity
	keywords []string
}{
	{Debug, []string{"DEBUG", "debug"}},
	{Warning, []string{"WARNING", "WARN", "warning"}},
	{Error, []string{"ERROR", "ERR", "error", "Error"}},
}

// Classify returns the first severity whose keywords occur in line. Debug is
// checked before Warning, Warning before Error.
func Classify(line string) Severity {
	for _, group := range severityKeywords {
		for _, keyword := range group.keywords {
			if strings.Contains(line, keyword) {
				return group.severity
			}
		}
	}
	return Normal
}

// Rule styles every line matching Pattern, ahead of the severity styles.
type Rule struct {
	Pattern    *regexp.Regexp
	Foreground string
	Background string
}

// Highlighter renders lines for one output. A disabled highlighter returns
// lines untouched.
type Highlighter struct {
	enabled  bool
	renderer *lipgloss.Renderer
	styles   map[Severity]lipgloss.Style
	rules    []compiledRule
}

type compiledRule struct {
	pattern *regexp.Regexp
	style   lipgloss.Style
}

// New builds a highlighter whose color support is detected from w.
func New(w io.Writer, enabled bool) *Highlighter {
	return NewWithRenderer(lipgloss.NewRenderer(w), enabled)
}

func NewWithRenderer(renderer *lipgloss.Renderer, enabled bool) *Highlighter {
	black := lipgloss.Color("0")
	return &Highlighter{
		enabled:  enabled,
		renderer: renderer,
		styles: map[Severity]lipgloss.Style{
			Debug:   renderer.NewStyle().Foreground(lipgloss.Color("6")),
			Warning: renderer.NewStyle().Foreground(black).Background(lipgloss.Color("3")),
			Error:   renderer.NewStyle().Foreground(black).Background(lipgloss.Color("1")),
		},
	}
}

// AddRule compiles pattern and appends a custom rule. Colors use lipgloss
// notation: ANSI indexes ("1") or hex ("#ff0000"); empty means unchanged.
func (h *Highlighter) AddRule(pattern, foreground, background string) error {
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("highlight rule %q: %w", pattern, err)
	}
	style := h.renderer.NewStyle()
	if foreground != "" {
		style = style.Foreground(lipgloss.Color(foreground))
	}
	if background != "" {
		style = style.Background(lipgloss.Color(background))
	}
	h.rules = append(h.rules, compiledRule{pattern: compiled, style: style})
	return nil
}

func (h *Highlighter) Render(line string) string {
	if h == nil || !h.enabled {
		return line
	}
	for _, rule := range h.rules {
		if rule.pattern.MatchString(line) {
			return rule.style.Render(line)
		}
	}
	style, ok := h.styles[Classify(line)]
	if !ok {
		return line
	}
	return style.Render(line)
}
