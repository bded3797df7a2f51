package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mgomes/launchr/internal/settings"
)

// SettingsModel edits the search threshold and the automatic rescan
// interval. An interval of 0 turns automatic rescans off.
type SettingsModel struct {
	thresholdInput textinput.Model
	intervalInput  textinput.Model
	focus          int
	error          string
	width          int
	height         int
}

func NewSettingsModel(current settings.Values) SettingsModel {
	threshold := textinput.New()
	threshold.Placeholder = "0.5"
	threshold.SetValue(strconv.FormatFloat(current.Threshold, 'f', -1, 64))
	threshold.Focus()
	threshold.Width = 20

	interval := textinput.New()
	interval.Placeholder = "300"
	if current.AutomaticRescanEnabled {
		interval.SetValue(strconv.Itoa(current.AutomaticRescanIntervalInSeconds))
	} else {
		interval.SetValue("0")
	}
	interval.Width = 20

	return SettingsModel{
		thresholdInput: threshold,
		intervalInput:  interval,
		focus:          0,
	}
}

func (m SettingsModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m SettingsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "tab", "down", "shift+tab", "up":
			m.toggleFocus()
			return m, nil

		case "enter":
			submit, errMsg := m.parse()
			if errMsg != "" {
				m.error = errMsg
				return m, nil
			}
			return m, func() tea.Msg { return submit }
		}

		if m.focus == 0 {
			m.thresholdInput, cmd = m.thresholdInput.Update(msg)
		} else {
			m.intervalInput, cmd = m.intervalInput.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case SettingsErrorMsg:
		m.error = msg.Error

	default:
		if m.focus == 0 {
			m.thresholdInput, cmd = m.thresholdInput.Update(msg)
		} else {
			m.intervalInput, cmd = m.intervalInput.Update(msg)
		}
	}

	return m, cmd
}

func (m *SettingsModel) toggleFocus() {
	if m.focus == 0 {
		m.focus = 1
		m.thresholdInput.Blur()
		m.intervalInput.Focus()
	} else {
		m.focus = 0
		m.intervalInput.Blur()
		m.thresholdInput.Focus()
	}
}

func (m SettingsModel) parse() (SettingsSubmitMsg, string) {
	threshold, err := strconv.ParseFloat(strings.TrimSpace(m.thresholdInput.Value()), 64)
	if err != nil || threshold < 0 || threshold > 1 {
		return SettingsSubmitMsg{}, "Threshold must be a number between 0 and 1"
	}

	raw := strings.TrimSpace(m.intervalInput.Value())
	if raw == "" {
		raw = "0"
	}
	interval, err := strconv.Atoi(raw)
	if err != nil || interval < 0 {
		return SettingsSubmitMsg{}, "Interval must be a whole number of seconds"
	}

	return SettingsSubmitMsg{
		Threshold:       threshold,
		IntervalSeconds: interval,
		AutomaticRescan: interval > 0,
	}, ""
}

func (m SettingsModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("launchr - Settings") + "\n\n")

	label := func(text string, focused bool) string {
		if focused {
			return activeStyle.Render("> "+text) + "\n"
		}
		return "  " + text + "\n"
	}

	b.WriteString(label("Match threshold (0 exact, 1 anything):", m.focus == 0))
	b.WriteString(inputStyle.Render(m.thresholdInput.View()) + "\n\n")

	b.WriteString(label("Automatic rescan interval in seconds (0 off):", m.focus == 1))
	b.WriteString(inputStyle.Render(m.intervalInput.View()) + "\n")

	if m.error != "" {
		b.WriteString("\n" + errorStyle.Render("Error: "+m.error) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("tab switch field  enter save  esc cancel"))

	return b.String()
}
