package out

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"readingroom/internal/modules/reader/domain"
	readerout "readingroom/internal/modules/reader/port/out"
)

// LauncherViewer hands the document to the desktop's default application. It
// never reports telemetry; relayed messages arrive over the relay socket if at all.
type LauncherViewer struct {
	command func(target string) (*exec.Cmd, error)
}

func NewLauncherViewer() *LauncherViewer {
	return &LauncherViewer{command: osCommand}
}

func osCommand(target string) (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", target), nil
	case "linux":
		return exec.Command("xdg-open", target), nil
	default:
		return nil, fmt.Errorf("external open is not supported on %s", runtime.GOOS)
	}
}

func (l *LauncherViewer) Open(_ context.Context, _ string, url string) (readerout.ViewerSession, error) {
	cmd, err := l.command(url)
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("open external target: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return launchedSession{}, nil
}

type launchedSession struct{}

func (launchedSession) Telemetry(context.Context) (domain.TelemetryMessage, bool, error) {
	return domain.TelemetryMessage{}, false, nil
}

func (launchedSession) Close() error { return nil }
