package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"logsite/internal/follow"
	"logsite/internal/sites"
)

// Styles groups the lipgloss styles used to draw lines.
type Styles struct {
	Header lipgloss.Style
	Status lipgloss.Style
	Error  lipgloss.Style
	Day    lipgloss.Style
	More   lipgloss.Style
	Time   lipgloss.Style
	Source lipgloss.Style
	Frame  lipgloss.Style
	Quiet  lipgloss.Style
	Levels map[byte]lipgloss.Style
}

// DefaultStyles returns the standard palette.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("24")).Padding(0, 1),
		Status: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Error:  lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#C00000", Dark: "#FF6B6B"}),
		Day:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
		More:   lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Underline(true),
		Time:   lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		Source: lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#58F", Dark: "#8AD"}),
		Frame:  lipgloss.NewStyle().PaddingLeft(4),
		Quiet:  lipgloss.NewStyle().PaddingLeft(4).Faint(true),
		Levels: map[byte]lipgloss.Style{
			'T': lipgloss.NewStyle().Foreground(lipgloss.Color("246")),
			'D': lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
			'I': lipgloss.NewStyle(),
			'W': lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#C77D00", Dark: "#FFB020"}),
			'E': lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#C00000", Dark: "#FF6B6B"}),
		},
	}
}

// PlainStyles keeps the layout of DefaultStyles without any colour, for
// output that is not a terminal.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header: plain,
		Status: plain,
		Error:  plain,
		Day:    plain,
		More:   plain,
		Time:   plain,
		Source: plain,
		Frame:  lipgloss.NewStyle().PaddingLeft(4),
		Quiet:  lipgloss.NewStyle().PaddingLeft(4),
		Levels: map[byte]lipgloss.Style{'T': plain, 'D': plain, 'I': plain, 'W': plain, 'E': plain},
	}
}

func (s Styles) level(code byte) lipgloss.Style {
	if style, ok := s.Levels[code]; ok {
		return style
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
}

// frameworkPrefixes mark stack frames inside common libraries. They are drawn
// faint so application frames stand out.
var frameworkPrefixes = []string{
	"java.", "javax.", "jdk.", "sun.",
	"org.apache.", "org.springframework.", "org.hibernate.", "org.jboss.",
	"org.eclipse.", "org.slf4j.", "ch.qos.logback.", "com.fasterxml.jackson.",
	"com.zaxxer.hikari.", "io.netty.", "com.google.common.", "org.junit.",
}

func isFrameworkFrame(frame string) bool {
	frame = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(frame), "at "))
	for _, prefix := range frameworkPrefixes {
		if strings.HasPrefix(frame, prefix) {
			return true
		}
	}
	return false
}

// RenderLines draws the view body: a "more" marker when older lines are
// hidden, a day separator whenever the date changes, then each line with its
// payload and stack frames.
func RenderLines(view follow.View, styles Styles) string {
	var b strings.Builder
	if view.HasMore {
		b.WriteString(styles.More.Render(fmt.Sprintf("↑ %d more lines (m)", view.Hidden)))
		b.WriteByte('\n')
	}
	prevDay := ""
	for _, line := range view.Lines {
		if !line.Timestamp.IsZero() {
			if day := line.Timestamp.Format("Mon 2006-01-02"); day != prevDay {
				b.WriteString(styles.Day.Render("── " + day + " ──"))
				b.WriteByte('\n')
				prevDay = day
			}
		}
		b.WriteString(RenderLine(line, styles))
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// RenderLine draws one structured line.
func RenderLine(line sites.LogLine, styles Styles) string {
	level := styles.level(line.LevelCode())
	parts := make([]string, 0, 5)
	if !line.Timestamp.IsZero() {
		parts = append(parts, styles.Time.Render(line.Timestamp.Format("15:04:05")))
	}
	if line.Level != "" {
		parts = append(parts, level.Bold(true).Render(fmt.Sprintf("%-5s", strings.ToUpper(line.Level))))
	}
	if len(line.Source) > 0 {
		parts = append(parts, styles.Source.Render(strings.Join(line.Source, " ")))
	}
	msg := line.Message
	if msg == "" && len(line.Payload) == 0 {
		msg = line.Raw
	}
	if msg != "" {
		parts = append(parts, level.Render(msg))
	}
	if len(line.Payload) > 0 {
		parts = append(parts, level.Render(compactJSON(line.Payload)))
	}

	out := strings.Join(parts, " ")
	for _, frame := range line.StackFrames {
		style := styles.Frame
		if isFrameworkFrame(frame) {
			style = styles.Quiet
		}
		out += "\n" + style.Render(frame)
	}
	return out
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
