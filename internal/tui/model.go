package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"logsite/internal/follow"
	"logsite/internal/scroll"
)

type keyMap struct {
	Quit    key.Binding
	Include key.Binding
	Exclude key.Binding
	More    key.Binding
	Refresh key.Binding
	Bottom  key.Binding
	Top     key.Binding
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Include: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "include")),
	Exclude: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "exclude")),
	More:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "more")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Bottom:  key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
	Top:     key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
}

func (k keyMap) help() string {
	bindings := []key.Binding{k.Include, k.Exclude, k.More, k.Refresh, k.Bottom, k.Top, k.Quit}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

type inputMode int

const (
	modeNormal inputMode = iota
	modeInclude
	modeExclude
)

type eventMsg struct{ evt follow.Event }

type closedMsg struct{}

type scrollBottomMsg struct{}

// Model is the bubbletea model of the follow view.
type Model struct {
	follower *follow.Follower
	anchor   *scroll.Anchor
	styles   Styles

	vp      viewport.Model
	input   textinput.Model
	mode    inputMode
	include string
	exclude string

	view   follow.View
	err    error
	ready  bool
	closed bool
	width  int
	height int
}

// NewModel builds the model. The anchor's scroller should deliver
// ScrollToBottomMsg to the running program.
func NewModel(f *follow.Follower, anchor *scroll.Anchor) *Model {
	input := textinput.New()
	input.CharLimit = 256
	return &Model{
		follower: f,
		anchor:   anchor,
		styles:   DefaultStyles(),
		vp:       viewport.New(80, 20),
		input:    input,
		view:     f.View(),
	}
}

// ScrollToBottomMsg asks the model to move the viewport to the bottom.
func ScrollToBottomMsg() tea.Msg { return scrollBottomMsg{} }

func waitForEvent(ch <-chan follow.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return eventMsg{evt: evt}
	}
}

func (m *Model) Init() tea.Cmd {
	return waitForEvent(m.follower.Events())
}

func (m *Model) metrics() scroll.Metrics {
	return scroll.Metrics{
		ScrollTop:    m.vp.YOffset,
		ClientHeight: m.vp.Height,
		ScrollHeight: m.vp.TotalLineCount(),
	}
}

// AtBottom reports whether the viewport sits at the bottom of its content.
func (m *Model) AtBottom() bool {
	return m.anchor.AtBottom(m.metrics())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.vp.Width = msg.Width
		m.vp.Height = max(1, msg.Height-3)
		if !m.ready {
			m.ready = true
			m.setContent()
			m.vp.GotoBottom()
		}
		return m, nil

	case eventMsg:
		if msg.evt.Err != nil {
			m.err = msg.evt.Err
		} else {
			m.err = nil
			m.show(msg.evt.View)
		}
		if m.closed {
			return m, nil
		}
		return m, waitForEvent(m.follower.Events())

	case closedMsg:
		m.closed = true
		return m, nil

	case scrollBottomMsg:
		m.vp.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		if m.mode != modeNormal {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

// show installs a new view, keeping the reader's place unless they were at
// the bottom, in which case the anchor brings them back once it settles.
func (m *Model) show(view follow.View) {
	wasAtBottom := m.AtBottom()
	m.view = view
	m.setContent()
	m.anchor.OnNewDataSettled(wasAtBottom)
}

func (m *Model) setContent() {
	m.vp.SetContent(RenderLines(m.view, m.styles))
}

func (m *Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.anchor.Cancel()
		return m, tea.Quit
	case key.Matches(msg, keys.Include):
		return m, m.startInput(modeInclude, m.include)
	case key.Matches(msg, keys.Exclude):
		return m, m.startInput(modeExclude, m.exclude)
	case key.Matches(msg, keys.More):
		m.view = m.follower.ShowMore()
		m.setContent()
		m.vp.GotoTop()
		return m, nil
	case key.Matches(msg, keys.Refresh):
		m.follower.Refresh()
		return m, nil
	case key.Matches(msg, keys.Bottom):
		m.vp.GotoBottom()
		return m, nil
	case key.Matches(msg, keys.Top):
		m.anchor.Cancel()
		m.vp.GotoTop()
		return m, nil
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	if !m.AtBottom() {
		m.anchor.Cancel()
	}
	return m, cmd
}

func (m *Model) startInput(mode inputMode, value string) tea.Cmd {
	m.mode = mode
	m.input.Prompt = "include: "
	if mode == modeExclude {
		m.input.Prompt = "exclude: "
	}
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeNormal
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		if m.mode == modeInclude {
			m.include = m.input.Value()
		} else {
			m.exclude = m.input.Value()
		}
		m.mode = modeNormal
		m.input.Blur()
		m.view = m.follower.SetFilters(m.include, m.exclude)
		m.setContent()
		m.vp.GotoBottom()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) header() string {
	title := m.styles.Header.Render(fmt.Sprintf("%s / %s", m.view.Site, m.view.File))
	status := fmt.Sprintf("%d/%d lines", len(m.view.Lines), m.view.Total)
	switch m.view.Source {
	case follow.SourceLocal:
		status += " • local copy"
	case follow.SourceRemote:
		status += " • fetched " + m.view.FetchedAt.Local().Format(time.TimeOnly)
	default:
		status += " • loading"
	}
	if f := m.view.Filters.Include.String(); f != "" {
		status += " • in: " + f
	}
	if f := m.view.Filters.Exclude.String(); f != "" {
		status += " • out: " + f
	}
	return title + " " + m.styles.Status.Render(status)
}

func (m *Model) footer() string {
	if m.mode != modeNormal {
		return m.input.View()
	}
	if m.err != nil {
		return m.styles.Error.Render(m.err.Error())
	}
	return m.styles.Status.Render(keys.help())
}

func (m *Model) View() string {
	return m.header() + "\n" + m.vp.View() + "\n" + m.footer()
}

// Options tunes the follow view.
type Options struct {
	Settle    time.Duration
	Tolerance int
	AltScreen bool
}

// Run drives the follower and the program until the user quits or ctx ends.
func Run(ctx context.Context, f *follow.Follower, opts Options) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var program *tea.Program
	anchor := scroll.NewAnchor(scroll.ScrollerFunc(func() {
		if program != nil {
			program.Send(ScrollToBottomMsg())
		}
	}), opts.Settle, opts.Tolerance)
	model := NewModel(f, anchor)

	teaOpts := []tea.ProgramOption{tea.WithContext(runCtx)}
	if opts.AltScreen {
		teaOpts = append(teaOpts, tea.WithAltScreen())
	}
	program = tea.NewProgram(model, teaOpts...)

	followErr := make(chan error, 1)
	go func() { followErr <- f.Run(runCtx) }()

	_, err := program.Run()
	anchor.Cancel()
	cancel()
	ferr := <-followErr
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if ferr != nil && ctx.Err() == nil {
		return ferr
	}
	return nil
}
