package out_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	readeradapter "readingroom/internal/modules/reader/adapter/out"
)

func TestPluginViewerIntegrationBasicViewer(t *testing.T) {
	binPath := buildBasicViewer(t)
	telemetry := filepath.Join(t.TempDir(), "scroll.jsonl")
	t.Setenv("READINGROOM_VIEWER_COMMAND", "none")
	t.Setenv("READINGROOM_VIEWER_TELEMETRY", telemetry)

	viewer := readeradapter.NewPluginViewer(binPath, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	meta, err := viewer.Check(ctx)
	if err != nil {
		t.Fatalf("check viewer: %v", err)
	}
	if meta.Name != "basicviewer" || !meta.Telemetry {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	session, err := viewer.Open(ctx, "doc-1", "file:///tmp/doc-1.pdf")
	if err != nil {
		t.Fatalf("open viewer: %v", err)
	}
	defer session.Close()

	if _, ok, err := session.Telemetry(ctx); err != nil || ok {
		t.Fatalf("expected no telemetry before the viewer scrolls, ok=%v err=%v", ok, err)
	}

	lines := `{"type":"pdfScroll","scrollTop":100,"scrollHeight":1100,"clientHeight":100}
{"type":"pdfScroll","scrollTop":500,"scrollHeight":1100,"clientHeight":100}
`
	if err := os.WriteFile(telemetry, []byte(lines), 0o644); err != nil {
		t.Fatalf("write telemetry: %v", err)
	}
	msg, ok, err := session.Telemetry(ctx)
	if err != nil {
		t.Fatalf("telemetry: %v", err)
	}
	if !ok || msg.Type != "pdfScroll" || msg.ScrollTop != 500 {
		t.Fatalf("unexpected telemetry: ok=%v msg=%+v", ok, msg)
	}
	if err := msg.Validate(); err != nil {
		t.Fatalf("relayed message should validate: %v", err)
	}

	if err := session.Close(); err != nil {
		t.Fatalf("close viewer: %v", err)
	}
}

func TestPluginViewerRequiresBinary(t *testing.T) {
	t.Parallel()
	viewer := readeradapter.NewPluginViewer("", nil)
	if _, err := viewer.Open(context.Background(), "doc-1", "file:///tmp/doc-1.pdf"); err == nil {
		t.Fatalf("expected error without a configured binary")
	}
}

func buildBasicViewer(t *testing.T) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "basicviewer")
	cmd := exec.Command("go", "build", "-o", binPath, "./plugins/basicviewer")
	cmd.Dir = repositoryRoot(t)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build basic viewer: %v\n%s", err, string(out))
	}
	return binPath
}

func repositoryRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "../../../../../"))
}
