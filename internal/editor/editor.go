// Package editor opens caption records in an external editor so
// reviewers can fix span text outside the review loop.
package editor

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// Opener launches the configured editor command, falling back to the
// platform opener when none is configured.
type Opener struct {
	command string
	log     *slog.Logger
}

func New(command string, log *slog.Logger) *Opener {
	return &Opener{command: strings.TrimSpace(command), log: log}
}

// Open launches the editor on path and returns once the process has
// started. The editor runs detached; its exit status is only logged.
func (o *Opener) Open(path string) error {
	argv := o.argv(path)
	bin, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("editor command %q not found: %w", argv[0], err)
	}

	cmd := exec.Command(bin, argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start editor: %w", err)
	}
	o.log.Info("opened in external editor", "path", path, "command", argv[0])

	go func() {
		if err := cmd.Wait(); err != nil {
			o.log.Warn("editor exited with error", "command", argv[0], "error", err)
		}
	}()
	return nil
}

func (o *Opener) argv(path string) []string {
	if o.command != "" {
		return append(strings.Fields(o.command), path)
	}
	switch runtime.GOOS {
	case "darwin":
		return []string{"open", path}
	case "windows":
		return []string{"cmd", "/c", "start", "", path}
	default:
		return []string{"xdg-open", path}
	}
}
