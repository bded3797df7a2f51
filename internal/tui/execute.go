package tui

import (
	"context"
	"fmt"

	"github.com/mgomes/launchr/internal/command"
	"github.com/mgomes/launchr/internal/search"
)

// OpenCommand returns the platform's opener invocation for target.
func OpenCommand(platform, target string) (string, []string) {
	switch platform {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "cmd", []string{"/c", "start", "", target}
	default:
		return "xdg-open", []string{target}
	}
}

// Execute performs a Searchable's action. Commands are launched without
// waiting for them to exit.
func Execute(ctx context.Context, runner command.Runner, platform string, a search.Action) error {
	if a.Target == "" {
		return fmt.Errorf("action has no target")
	}

	switch a.Kind {
	case search.ActionOpen:
		name, args := OpenCommand(platform, a.Target)
		return runner.Run(ctx, name, args...)
	case search.ActionCommand:
		return runner.Start(ctx, a.Target, a.Args...)
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
}
