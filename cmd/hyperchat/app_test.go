package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/hyperchat/internal/envelope"
	"github.com/danmuck/hyperchat/internal/feed"
	"github.com/danmuck/hyperchat/internal/testutil/testlog"
)

func TestRunDemoWritesLocalFeed(t *testing.T) {
	testlog.Start(t)
	storage := t.TempDir()
	var out bytes.Buffer

	if err := run(context.Background(), []string{"-u", "nolan", "-storage", storage}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	for _, want := range []string{
		"Username: nolan",
		"Content: Hello from Rust!",
		"Type: Microblog",
		"Message system working correctly!",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}

	l, err := feed.OpenLocalFS(filepath.Join(storage, "feeds", "own"))
	if err != nil {
		t.Fatalf("open feed: %v", err)
	}
	defer l.Close()
	entries, err := feed.ReadEnvelopes(context.Background(), l, feed.ReadOptions{})
	if err != nil {
		t.Fatalf("read feed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Envelope.Variant() != envelope.Chat || entries[0].Envelope.Author() != "nolan" {
		t.Fatalf("unexpected first entry: %+v", entries[0].Envelope)
	}
}

func TestRunReportsInvalidPosts(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	args := []string{
		"-storage", t.TempDir(),
		"-post", "status:",
		"-post", "microblog:" + strings.Repeat("a", 281),
		"-post", "message:still here",
	}
	if err := run(context.Background(), args, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "Message 1 validation failed") || !strings.Contains(text, "Message 2 validation failed") {
		t.Fatalf("expected validation failures:\n%s", text)
	}
	if !strings.Contains(text, "Content: still here") || !strings.Contains(text, "Author: anonymous") {
		t.Fatalf("expected valid post to be echoed:\n%s", text)
	}
}

func TestRunWithConfigFile(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "hyperchat.toml")
	content := `
username = "carol"

[feed]
backend = "memory"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-config", path, "-post", "status:away"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "Author: carol") || !strings.Contains(out.String(), "Feed backend: memory") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestRunRejectsBadPostFlag(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-post", "poke:hi"}, &out); err == nil {
		t.Fatalf("expected unknown type error")
	}
	if err := run(context.Background(), []string{"-post", "no-separator"}, &out); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestRunHelp(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-h"}, &out); err != nil {
		t.Fatalf("help should not fail: %v", err)
	}
	if !strings.Contains(out.String(), "-username") {
		t.Fatalf("expected usage output:\n%s", out.String())
	}
}

func TestPostListString(t *testing.T) {
	var p postList
	for _, raw := range []string{"message:hi", "status:a:b"} {
		if err := p.Set(raw); err != nil {
			t.Fatalf("set %q: %v", raw, err)
		}
	}
	if p.String() != "message:hi,status:a:b" {
		t.Fatalf("unexpected string: %q", p.String())
	}
}
