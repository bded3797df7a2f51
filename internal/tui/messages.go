package tui

import "github.com/mgomes/launchr/internal/events"

type SettingsSubmitMsg struct {
	Threshold       float64
	IntervalSeconds int
	AutomaticRescan bool
}

type SettingsErrorMsg struct {
	Error string
}

type RescanEventMsg struct {
	Event events.Event
}

type ExecutedMsg struct {
	Name string
	Err  error
}
