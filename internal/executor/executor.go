package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"murmur/internal/domain"
	"murmur/internal/ports"
)

const commandTimeout = 10 * time.Second

// Runner executes an external command. Tests substitute it to avoid
// touching the desktop.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return fmt.Errorf("%s failed: %w: %s", name, err, detail)
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}

// Desktop performs actions through standard Linux desktop tooling:
// wtype for typing, xdg-open for apps and URLs, pactl for volume,
// playerctl for media and loginctl/systemctl for session control.
type Desktop struct {
	run       Runner
	clipboard ports.Clipboard
	searchURL string
	log       *slog.Logger
}

func NewDesktop(clipboard ports.Clipboard) *Desktop {
	return &Desktop{
		run:       execRunner,
		clipboard: clipboard,
		searchURL: "https://www.google.com/search?q=",
		log:       slog.Default().With("component", "executor"),
	}
}

// WithRunner replaces the command runner.
func (d *Desktop) WithRunner(run Runner) *Desktop {
	d.run = run
	return d
}

func (d *Desktop) Execute(ctx context.Context, env domain.ActionEnvelope) domain.ExecutionResult {
	result, err := d.dispatch(ctx, env)
	if err != nil {
		d.log.Warn("action failed", "action", env.ActionType, "err", err)
		return domain.ExecutionResult{ExecutionError: err.Error()}
	}
	return result
}

func (d *Desktop) dispatch(ctx context.Context, env domain.ActionEnvelope) (domain.ExecutionResult, error) {
	switch env.ActionType {
	case domain.ActionTypeText:
		return d.typeText(ctx, env)
	case domain.ActionOpenApp:
		return d.openApp(ctx, env)
	case domain.ActionOpenURL:
		return d.openURL(ctx, env)
	case domain.ActionWebSearch:
		return d.webSearch(ctx, env)
	case domain.ActionVolumeControl:
		return d.volume(ctx, env)
	case domain.ActionSystemControl:
		return d.system(ctx, env)
	case domain.ActionSpotifyControl:
		return d.media(ctx, env)
	case domain.ActionRespond, domain.ActionClarify:
		// Conversational turns have no desktop side effect; the reply
		// text is rendered and spoken by the caller.
		return domain.ExecutionResult{Executed: true}, nil
	case domain.ActionNone:
		return domain.ExecutionResult{Executed: true}, nil
	default:
		return domain.ExecutionResult{}, fmt.Errorf("%s is not supported on this desktop", env.ActionType)
	}
}

func (d *Desktop) typeText(ctx context.Context, env domain.ActionEnvelope) (domain.ExecutionResult, error) {
	text := env.RefinedText
	if text == "" {
		text = env.Payload["text"]
	}
	if text == "" {
		return domain.ExecutionResult{}, fmt.Errorf("nothing to type")
	}

	if err := d.run(ctx, "wtype", text); err != nil {
		// No virtual keyboard available; fall back to the clipboard so
		// the dictation is not lost.
		if d.clipboard != nil {
			if clipErr := d.clipboard.SetText(ctx, text); clipErr == nil {
				return domain.ExecutionResult{
					Executed:         true,
					ExecutionMessage: "Typed text unavailable; copied to clipboard instead",
				}, nil
			}
		}
		return domain.ExecutionResult{}, err
	}
	return domain.ExecutionResult{Executed: true}, nil
}

func (d *Desktop) openApp(ctx context.Context, env domain.ActionEnvelope) (domain.ExecutionResult, error) {
	app := strings.TrimSpace(env.Payload["app"])
	if app == "" {
		return domain.ExecutionResult{}, fmt.Errorf("no application named")
	}
	if err := d.run(ctx, "gtk-launch", app); err != nil {
		if err := d.run(ctx, app); err != nil {
			return domain.ExecutionResult{}, fmt.Errorf("could not launch %q: %w", app, err)
		}
	}
	return domain.ExecutionResult{Executed: true, ExecutionMessage: "Opened " + app}, nil
}

func (d *Desktop) openURL(ctx context.Context, env domain.ActionEnvelope) (domain.ExecutionResult, error) {
	target := strings.TrimSpace(env.Payload["url"])
	if target == "" {
		return domain.ExecutionResult{}, fmt.Errorf("no url given")
	}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}
	if err := d.run(ctx, "xdg-open", target); err != nil {
		return domain.ExecutionResult{}, err
	}
	return domain.ExecutionResult{Executed: true, ExecutionMessage: "Opened " + target}, nil
}

func (d *Desktop) webSearch(ctx context.Context, env domain.ActionEnvelope) (domain.ExecutionResult, error) {
	query := strings.TrimSpace(env.Payload["query"])
	if query == "" {
		return domain.ExecutionResult{}, fmt.Errorf("empty search query")
	}
	if err := d.run(ctx, "xdg-open", d.searchURL+url.QueryEscape(query)); err != nil {
		return domain.ExecutionResult{}, err
	}
	return domain.ExecutionResult{Executed: true, ExecutionMessage: "Searching for " + query}, nil
}

func (d *Desktop) volume(ctx context.Context, env domain.ActionEnvelope) (domain.ExecutionResult, error) {
	direction := strings.TrimSpace(env.Payload["direction"])
	var args []string
	switch direction {
	case "up":
		args = []string{"set-sink-volume", "@DEFAULT_SINK@", "+10%"}
	case "down":
		args = []string{"set-sink-volume", "@DEFAULT_SINK@", "-10%"}
	case "mute":
		args = []string{"set-sink-mute", "@DEFAULT_SINK@", "1"}
	case "unmute":
		args = []string{"set-sink-mute", "@DEFAULT_SINK@", "0"}
	default:
		return domain.ExecutionResult{}, fmt.Errorf("unknown volume direction %q", direction)
	}
	if err := d.run(ctx, "pactl", args...); err != nil {
		return domain.ExecutionResult{}, err
	}
	return domain.ExecutionResult{Executed: true, ExecutionMessage: "Volume " + direction}, nil
}

func (d *Desktop) system(ctx context.Context, env domain.ActionEnvelope) (domain.ExecutionResult, error) {
	action := strings.TrimSpace(env.Payload["action"])
	switch action {
	case "lock":
		if err := d.run(ctx, "loginctl", "lock-session"); err != nil {
			return domain.ExecutionResult{}, err
		}
		return domain.ExecutionResult{Executed: true, ExecutionMessage: "Screen locked"}, nil
	case "sleep":
		if err := d.run(ctx, "systemctl", "suspend"); err != nil {
			return domain.ExecutionResult{}, err
		}
		return domain.ExecutionResult{Executed: true, ExecutionMessage: "Suspending"}, nil
	case "shutdown":
		if err := d.run(ctx, "systemctl", "poweroff"); err != nil {
			return domain.ExecutionResult{}, err
		}
		return domain.ExecutionResult{Executed: true, ExecutionMessage: "Shutting down"}, nil
	case "restart":
		if err := d.run(ctx, "systemctl", "reboot"); err != nil {
			return domain.ExecutionResult{}, err
		}
		return domain.ExecutionResult{Executed: true, ExecutionMessage: "Restarting"}, nil
	case "screenshot":
		if err := d.run(ctx, "grim"); err != nil {
			return domain.ExecutionResult{}, err
		}
		return domain.ExecutionResult{Executed: true, ExecutionMessage: "Screenshot taken"}, nil
	default:
		return domain.ExecutionResult{}, fmt.Errorf("unknown system action %q", action)
	}
}

func (d *Desktop) media(ctx context.Context, env domain.ActionEnvelope) (domain.ExecutionResult, error) {
	action := strings.TrimSpace(env.Payload["action"])
	var args []string
	switch action {
	case "play", "resume":
		args = []string{"play"}
	case "pause", "stop":
		args = []string{"pause"}
	case "next", "skip":
		args = []string{"next"}
	case "previous", "back":
		args = []string{"previous"}
	default:
		return domain.ExecutionResult{}, fmt.Errorf("unknown media action %q", action)
	}
	if err := d.run(ctx, "playerctl", args...); err != nil {
		return domain.ExecutionResult{}, err
	}
	return domain.ExecutionResult{Executed: true, ExecutionMessage: "Playback " + args[0]}, nil
}
