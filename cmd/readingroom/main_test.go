package main

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--data", dataDir}, args...))
	err := root.Execute()
	return out.String(), err
}

var addedID = regexp.MustCompile(`\(([0-9a-f]+)\) book=(\d+)`)

func TestCatalogAndProgressCommands(t *testing.T) {
	dataDir := t.TempDir()

	out, err := run(t, dataDir, "catalog", "add-url", "https://books.example/sicp.pdf", "--title", "SICP", "--authors", "Abelson,Sussman")
	if err != nil {
		t.Fatalf("add-url: %v\n%s", err, out)
	}
	match := addedID.FindStringSubmatch(out)
	if match == nil {
		t.Fatalf("unexpected add output: %s", out)
	}
	documentID := match[1]
	if match[2] != "1" {
		t.Fatalf("first document should get book 1, got %s", match[2])
	}

	out, err = run(t, dataDir, "catalog", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "SICP") || !strings.Contains(out, documentID) {
		t.Fatalf("list should include the document: %s", out)
	}

	out, err = run(t, dataDir, "progress", "show", "--document", documentID)
	if err != nil {
		t.Fatalf("progress show: %v", err)
	}
	if !strings.Contains(out, "scroll top: -") || !strings.Contains(out, "backend progress: 0% (book 1)") {
		t.Fatalf("unexpected fresh progress: %s", out)
	}

	out, err = run(t, dataDir, "progress", "finish", "--document", documentID)
	if err != nil {
		t.Fatalf("progress finish: %v\n%s", err, out)
	}
	if !strings.Contains(out, "progress=100%") {
		t.Fatalf("unexpected finish output: %s", out)
	}

	out, err = run(t, dataDir, "progress", "show", "--document", documentID)
	if err != nil {
		t.Fatalf("progress show after finish: %v", err)
	}
	if !strings.Contains(out, "stored progress: 100%") || !strings.Contains(out, "backend progress: 100% (book 1)") {
		t.Fatalf("finish should be durable: %s", out)
	}

	out, err = run(t, dataDir, "catalog", "show", "--id", documentID)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "status: finished") || !strings.Contains(out, "authors: Abelson, Sussman") {
		t.Fatalf("unexpected show output: %s", out)
	}
}

func TestCommandsRequireFlags(t *testing.T) {
	dataDir := t.TempDir()
	for _, args := range [][]string{
		{"catalog", "show"},
		{"progress", "show"},
		{"progress", "finish"},
		{"relay", "post"},
	} {
		if _, err := run(t, dataDir, args...); err == nil {
			t.Fatalf("%v: expected missing flag error", args)
		}
	}
}

func TestRelayPostWithoutReaderFails(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("READINGROOM_SOCKET_PATH", filepath.Join(dataDir, "none.sock"))
	if _, err := run(t, dataDir, "relay", "post", "--document", "doc-1", "--progress", "40"); err == nil {
		t.Fatalf("expected dial error without a running reader")
	}
}

func TestViewerCheckRequiresPlugin(t *testing.T) {
	dataDir := t.TempDir()
	if _, err := run(t, dataDir, "viewer", "check"); err == nil || !strings.Contains(err.Error(), "viewer_plugin") {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
