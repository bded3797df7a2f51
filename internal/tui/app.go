package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mgomes/launchr/internal/command"
	"github.com/mgomes/launchr/internal/events"
	"github.com/mgomes/launchr/internal/search"
)

const maxResults = 10

type Options struct {
	Index     *search.Index
	Threshold func() float64
	Runner    command.Runner
	Platform  string
	Events    <-chan events.Event
	// Rescan runs a full rescan. It is called off the UI goroutine.
	Rescan func()
	// QuitAfterOpen closes the launcher once an action ran successfully.
	QuitAfterOpen bool
}

type SearchModel struct {
	opts     Options
	input    textinput.Model
	results  []search.Result
	selected int
	status   string
	error    string
	width    int
	height   int
}

func NewSearchModel(query string, opts Options) SearchModel {
	input := textinput.New()
	input.Placeholder = "Search applications and entries..."
	input.Prompt = "> "
	input.Width = 60
	input.SetValue(query)
	input.Focus()

	m := SearchModel{
		opts:  opts,
		input: input,
	}
	m.refresh()
	return m
}

func (m SearchModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForEvent(m.opts.Events))
}

func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "up", "ctrl+p":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down", "ctrl+n":
			if m.selected < len(m.results)-1 {
				m.selected++
			}
			return m, nil

		case "enter":
			if len(m.results) > 0 && m.selected < len(m.results) {
				m.error = ""
				return m, m.execute(m.results[m.selected].Item)
			}
			return m, nil

		case "ctrl+r":
			if m.opts.Rescan != nil {
				rescan := m.opts.Rescan
				return m, func() tea.Msg {
					rescan()
					return nil
				}
			}
			return m, nil
		}

		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if m.input.Value() != before {
			m.refresh()
		}
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case RescanEventMsg:
		switch msg.Event.Name {
		case events.RescanStarted:
			m.status = "Rescanning..."
		case events.RescanFinished:
			if len(msg.Event.FailedPlugins) > 0 {
				m.status = "Rescan failed for " + strings.Join(msg.Event.FailedPlugins, ", ")
			} else {
				m.status = fmt.Sprintf("%d items indexed", m.opts.Index.Size())
			}
			m.refresh()
		}
		return m, waitForEvent(m.opts.Events)

	case ExecutedMsg:
		if msg.Err != nil {
			m.error = fmt.Sprintf("%s: %v", msg.Name, msg.Err)
			return m, nil
		}
		if m.opts.QuitAfterOpen {
			return m, tea.Quit
		}

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *SearchModel) refresh() {
	threshold := 1.0
	if m.opts.Threshold != nil {
		threshold = m.opts.Threshold()
	}
	if m.opts.Index == nil {
		m.results = nil
	} else {
		m.results = m.opts.Index.Query(m.input.Value(), threshold, maxResults)
	}
	if m.selected >= len(m.results) {
		m.selected = max(0, len(m.results)-1)
	}
}

func (m SearchModel) execute(item search.Searchable) tea.Cmd {
	runner := m.opts.Runner
	platform := m.opts.Platform
	return func() tea.Msg {
		if runner == nil {
			return ExecutedMsg{Name: item.Name(), Err: fmt.Errorf("no command runner")}
		}
		return ExecutedMsg{Name: item.Name(), Err: Execute(context.Background(), runner, platform, item.Action())}
	}
}

func (m SearchModel) Query() string {
	return m.input.Value()
}

func (m SearchModel) Results() []search.Result {
	return m.results
}

func (m SearchModel) Selected() int {
	return m.selected
}

func (m SearchModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("launchr"))
	if m.status != "" {
		b.WriteString(" " + dimStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(inputStyle.Render(m.input.View()) + "\n\n")

	if m.error != "" {
		b.WriteString(errorStyle.Render("Error: "+m.error) + "\n\n")
	}

	if len(m.results) == 0 {
		if strings.TrimSpace(m.input.Value()) != "" {
			b.WriteString(dimStyle.Render("No results found") + "\n")
		}
		b.WriteString("\n" + helpStyle.Render("ctrl+r rescan  esc quit"))
		return b.String()
	}

	width := m.width
	if width <= 0 {
		width = 80
	}

	for i, result := range m.results {
		var line strings.Builder

		if i == m.selected {
			line.WriteString(selectedStyle.Render("> "))
		} else {
			line.WriteString("  ")
		}

		line.WriteString(scoreStyle.Render(fmt.Sprintf("[%.2f]", result.Score)) + " ")
		line.WriteString(nameStyle.Render(result.Item.Name()) + " ")
		line.WriteString(typeStyle.Render(result.Item.Type()))
		b.WriteString(line.String() + "\n")

		if i == m.selected {
			target := truncate(describe(result.Item.Action()), width-4)
			b.WriteString("    " + activeStyle.Render(target) + "\n")
		}
	}

	b.WriteString("\n" + helpStyle.Render("↑/↓ navigate  enter open  ctrl+r rescan  esc quit"))

	return b.String()
}

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return RescanEventMsg{Event: ev}
	}
}

func describe(a search.Action) string {
	if a.Kind == search.ActionCommand {
		return strings.TrimSpace(a.Target + " " + strings.Join(a.Args, " "))
	}
	return a.Target
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if max < 4 || len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
