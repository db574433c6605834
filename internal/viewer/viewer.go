package viewer

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"zupgo/internal/models"
)

// Launcher opens a finished collection directory in an external program,
// for example a browser or file manager.
type Launcher struct {
	name string
	args []string
}

// New parses command, e.g. "xdg-open" or "chrome --new-window". An empty
// command yields nil, which disables launching.
func New(command string) *Launcher {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	return &Launcher{name: fields[0], args: fields[1:]}
}

// Launch starts the viewer on dir without waiting for it to exit.
func (l *Launcher) Launch(dir string) error {
	if l == nil {
		return nil
	}
	args := append(append([]string{}, l.args...), dir)
	cmd := exec.Command(l.name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", l.name, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Debug("Viewer exited", "command", l.name, "error", err)
		}
	}()
	return nil
}

// Open is a batch.CompletionHook.
func (l *Launcher) Open(_ context.Context, res *models.BatchResult) {
	if err := l.Launch(res.Dir); err != nil {
		slog.Warn("Failed to launch viewer", "dir", res.Dir, "error", err)
	}
}
