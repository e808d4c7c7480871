package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Printer writes styled components to one writer.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to w (os.Stdout when nil)
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w, width: GetTerminalWidth()}
}

// Width returns the terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Section prints a titled block of preformatted text
func (p *Printer) Section(title, body string) {
	_, _ = fmt.Fprintln(p.out, SectionTitleStyle.Render("=== "+title+" ==="))
	_, _ = fmt.Fprintln(p.out, strings.TrimRight(body, "\n"))
	_, _ = fmt.Fprintln(p.out)
}

// Success prints a success result box
func (p *Printer) Success(title string, details ...Field) {
	p.Println(NewSuccessResult(title, details...).SetWidth(p.width).Render())
}

// Warning prints a warning result box
func (p *Printer) Warning(title string, details ...Field) {
	p.Println(NewWarningResult(title, details...).SetWidth(p.width).Render())
}

// Failure prints an error result box with troubleshooting tips
func (p *Printer) Failure(title string, err error, troubleshooting []string) {
	p.Println(NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
}

// RefreshFunc produces the text shown by a watch view
type RefreshFunc func(ctx context.Context) (string, error)

type tickMsg time.Time

type refreshMsg struct {
	content string
	err     error
	at      time.Time
}

// WatchModel is a Bubble Tea model that re-runs a RefreshFunc on an
// interval until the user quits.
type WatchModel struct {
	ctx      context.Context
	title    string
	interval time.Duration
	refresh  RefreshFunc
	now      func() time.Time

	content string
	err     error
	updated time.Time
	width   int
}

// NewWatchModel creates a watch view that refreshes every interval
func NewWatchModel(ctx context.Context, title string, interval time.Duration, refresh RefreshFunc) WatchModel {
	return WatchModel{
		ctx:      ctx,
		title:    title,
		interval: interval,
		refresh:  refresh,
		now:      time.Now,
		width:    GetTerminalWidth(),
	}
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return m.doRefresh()
}

func (m WatchModel) doRefresh() tea.Cmd {
	return func() tea.Msg {
		content, err := m.refresh(m.ctx)
		return refreshMsg{content: content, err: err, at: m.now()}
	}
}

func (m WatchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.doRefresh()
		}
	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
	case tickMsg:
		return m, m.doRefresh()
	case refreshMsg:
		// Keep the last good content on failure
		if msg.err == nil {
			m.content = msg.content
		}
		m.err = msg.err
		m.updated = msg.at
		return m, m.tick()
	}
	return m, nil
}

// View implements tea.Model
func (m WatchModel) View() string {
	var b strings.Builder
	b.WriteString(HeaderTitleStyle.Render(strings.ToUpper(m.title)))
	b.WriteString("\n")
	b.WriteString(RenderHorizontalDivider(m.width-2, "─"))
	b.WriteString("\n\n")

	if m.content == "" && m.err == nil {
		b.WriteString(StepPendingStyle.Render("  Connecting..."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.content)
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorMessageStyle.Render("  Refresh failed: " + m.err.Error()))
		b.WriteString("\n")
	}

	footer := fmt.Sprintf("  every %s", m.interval)
	if !m.updated.IsZero() {
		footer += fmt.Sprintf(" · updated %s", m.updated.Format("15:04:05"))
	}
	footer += " · r refresh · q quit"
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(MutedColor).Render(footer))
	return b.String()
}

// RunWatch runs a watch view until the user quits or ctx ends
func RunWatch(ctx context.Context, title string, interval time.Duration, refresh RefreshFunc) error {
	p := tea.NewProgram(NewWatchModel(ctx, title, interval, refresh), tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
