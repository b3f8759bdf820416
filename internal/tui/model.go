// Package tui provides the Bubble Tea practice interface.
package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mkbrennan/ditdah/internal/engine"
	"github.com/mkbrennan/ditdah/internal/keyer"
	"github.com/mkbrennan/ditdah/internal/store"
)

// inputSource identifies keyboard paddle events to the keyer.
const inputSource = "keyboard"

// Engine events are delivered from timer goroutines; they cross into the
// Bubble Tea loop as messages.
type symbolMsg engine.SymbolEvent

type characterMsg engine.CharacterEvent

type finishedMsg struct{}

type keyMap struct {
	Dit    key.Binding
	Dah    key.Binding
	Replay key.Binding
	Mute   key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Dit: key.NewBinding(
		key.WithKeys("j", "."),
		key.WithHelp("j", "dit"),
	),
	Dah: key.NewBinding(
		key.WithKeys("k", "-"),
		key.WithHelp("k", "dah"),
	),
	Replay: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "replay sentence"),
	),
	Mute: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "mute"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "quit"),
	),
}

var (
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	currentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Underline(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	missStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	seqStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5AA9E6"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// Model implements the Bubble Tea practice UI.
type Model struct {
	engine   *engine.Engine
	store    *store.Store
	sentence string
	wpm      int

	events chan tea.Msg

	width  int
	height int

	sequence  string
	lastMiss  rune
	missFlash bool
	finished  bool
	saved     bool
	saveErr   error
	muted     bool
}

// NewModel constructs a practice model and begins the session on the
// engine. The returned model owns the event channel the engine feeds.
func NewModel(eng *engine.Engine, st *store.Store, sentence string, wpm int) (*Model, error) {
	if err := eng.BeginSession(sentence); err != nil {
		return nil, err
	}
	m := &Model{
		engine:   eng,
		store:    st,
		sentence: sentence,
		wpm:      wpm,
		events:   make(chan tea.Msg, 64),
	}
	eng.SetCallbacks(engine.Callbacks{
		SymbolEmitted: func(ev engine.SymbolEvent) {
			m.send(symbolMsg(ev))
		},
		CharacterResolved: func(ev engine.CharacterEvent) {
			m.send(characterMsg(ev))
		},
		SentenceFinished: func() {
			m.send(finishedMsg{})
		},
	})
	return m, nil
}

// send delivers an engine event without blocking the timer goroutine. A
// full channel drops the event; the view catches up on the next one.
func (m *Model) send(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.waitForEvent()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case symbolMsg:
		m.sequence += string(msg.Symbol.Mark())
		return m, m.waitForEvent()

	case characterMsg:
		m.sequence = ""
		m.missFlash = !msg.Correct
		if !msg.Correct {
			m.lastMiss = msg.Decoded
		}
		return m, m.waitForEvent()

	case finishedMsg:
		m.finished = true
		m.saveResult()
		return m, m.waitForEvent()

	case tea.KeyMsg:
		return m.handleKey(msg)

	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.engine.Stop()
		return m, tea.Quit

	case m.finished:
		return m, nil

	// Terminals report no key-release events, so a key tap maps to a full
	// press/release pair; holds and iambic squeezes need a real paddle.
	case key.Matches(msg, keys.Dit):
		m.engine.Press(keyer.PaddleDit, inputSource)
		m.engine.Release(keyer.PaddleDit, inputSource)
		return m, nil

	case key.Matches(msg, keys.Dah):
		m.engine.Press(keyer.PaddleDah, inputSource)
		m.engine.Release(keyer.PaddleDah, inputSource)
		return m, nil

	case key.Matches(msg, keys.Replay):
		m.engine.PlaySentence(m.sentence, nil)
		return m, nil

	case key.Matches(msg, keys.Mute):
		m.muted = !m.muted
		m.engine.SetMuted(m.muted)
		return m, nil

	default:
		return m, nil
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	content := m.renderSentence() + "\n\n" + m.renderStatus()
	footer := m.renderFooter()

	if m.width == 0 || m.height == 0 {
		return content + "\n" + footer
	}
	bodyHeight := m.height - 1
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderSentence() string {
	clock, err := m.engine.Session()
	if err != nil {
		return pendingStyle.Render(m.sentence)
	}
	idx := clock.CurrentIndex()
	runes := []rune(m.sentence)

	var b strings.Builder
	for i, r := range runes {
		switch {
		case m.finished || i < idx:
			b.WriteString(doneStyle.Render(string(r)))
		case i == idx:
			b.WriteString(currentStyle.Render(string(r)))
		default:
			b.WriteString(pendingStyle.Render(string(r)))
		}
	}
	return b.String()
}

func (m *Model) renderStatus() string {
	if m.finished {
		return m.renderResult()
	}
	seq := m.sequence
	if seq == "" {
		seq = " "
	}
	line := seqStyle.Render(seq)
	if m.missFlash {
		miss := "?"
		if m.lastMiss != 0 {
			miss = string(m.lastMiss)
		}
		line += "  " + missStyle.Render(fmt.Sprintf("got %s, try again", miss))
	}
	return line
}

func (m *Model) renderResult() string {
	clock, err := m.engine.Session()
	if err != nil {
		return ""
	}
	elapsed := clock.Elapsed().Round(100 * time.Millisecond)
	line := fmt.Sprintf("Done in %v  ·  %d correct  ·  %d misses",
		elapsed, clock.CorrectChars(), clock.IncorrectAttempts())
	if m.saveErr != nil {
		line += "  ·  " + missStyle.Render("save failed")
	} else if m.saved {
		line += "  ·  saved"
	}
	return doneStyle.Render(line)
}

func (m *Model) renderFooter() string {
	bindings := []key.Binding{keys.Dit, keys.Dah, keys.Replay, keys.Mute, keys.Quit}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, fmt.Sprintf("%s %s", h.Key, h.Desc))
	}
	return footerStyle.Render(strings.Join(parts, "  ·  "))
}

func (m *Model) saveResult() {
	if m.saved || m.store == nil {
		return
	}
	clock, err := m.engine.Session()
	if err != nil {
		return
	}
	_, err = m.store.InsertResult(context.Background(), store.Result{
		EndedAt:           time.Now(),
		Sentence:          m.sentence,
		WPM:               float64(m.wpm),
		CorrectChars:      clock.CorrectChars(),
		IncorrectAttempts: clock.IncorrectAttempts(),
		DurationMs:        clock.Elapsed().Milliseconds(),
	})
	if err != nil {
		m.saveErr = err
		logErrf("failed to save session: %v\n", err)
		return
	}
	m.saved = true
}

// Run drives the practice UI until the user quits.
func Run(eng *engine.Engine, st *store.Store, sentence string, wpm int) error {
	m, err := NewModel(eng, st, sentence, wpm)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
