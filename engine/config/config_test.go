package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyArgs(t *testing.T) {
	type spec struct {
		args     []string
		width    uint32
		height   uint32
		warp     bool
		headless bool
		frames   uint64
	}

	specs := []spec{
		{nil, 1280, 720, false, false, 0},
		{[]string{"-w", "800", "-h", "600"}, 800, 600, false, false, 0},
		{[]string{"--width", "1024", "--height=768", "--warp"}, 1024, 768, true, false, 0},
		{[]string{"-warp"}, 1280, 720, true, false, 0},
		// malformed and missing values keep the defaults
		{[]string{"-w", "wide", "-h", "0"}, 1280, 720, false, false, 0},
		{[]string{"-w"}, 1280, 720, false, false, 0},
		{[]string{"--height", "-5"}, 1280, 720, false, false, 0},
		// unknown flags are ignored
		{[]string{"--bogus", "-x", "--width", "640", "stray"}, 640, 720, false, false, 0},
		{[]string{"--headless", "--frames", "120"}, 1280, 720, false, true, 120},
		// a flag missing its value leaves the next flag alone
		{[]string{"-w", "--warp"}, 1280, 720, true, false, 0},
		{[]string{"--frames", "--headless", "-h", "480"}, 1280, 480, false, true, 0},
	}

	for index, s := range specs {
		c := Default()
		ApplyArgs(c, s.args)
		if c.Window.Width != s.width || c.Window.Height != s.height {
			t.Fatalf("[spec %d] expected %dx%d; got %dx%d", index, s.width, s.height, c.Window.Width, c.Window.Height)
		}
		if c.Renderer.UseWarp != s.warp {
			t.Fatalf("[spec %d] expected warp %v; got %v", index, s.warp, c.Renderer.UseWarp)
		}
		if c.Renderer.Headless != s.headless || c.Renderer.Frames != s.frames {
			t.Fatalf("[spec %d] expected headless %v frames %d; got %v %d", index, s.headless, s.frames, c.Renderer.Headless, c.Renderer.Frames)
		}
	}
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "cadence.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[window]
title = "from file"
width = 1920
height = 1080

[renderer]
buffers = 40
vsync = false
clear_color = [0.5, 2.0, 0.1]

[log]
level = "debug"
`)

	c, err := Load([]string{"--config", path, "-h", "900"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Path != path {
		t.Fatalf("expected path %s; got %s", path, c.Path)
	}
	if c.Window.Title != "from file" || c.Window.Width != 1920 {
		t.Fatalf("expected file values; got %+v", c.Window)
	}
	if c.Window.Height != 900 {
		t.Fatalf("expected the command line to win; got height %d", c.Window.Height)
	}
	if c.Renderer.VSync {
		t.Fatal("expected vsync to be disabled by the file")
	}
	if c.Renderer.BufferCount != maxBufferCount {
		t.Fatalf("expected buffer count clamped to %d; got %d", maxBufferCount, c.Renderer.BufferCount)
	}
	if c.Renderer.ClearColor[1] != 1 {
		t.Fatalf("expected clear color clamped to 1; got %v", c.Renderer.ClearColor[1])
	}
	if c.Log.Level != "debug" {
		t.Fatalf("expected debug level; got %s", c.Log.Level)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load([]string{"--config", filepath.Join(dir, "missing.toml")}); err == nil {
		t.Fatal("expected an explicit missing file to fail")
	}

	bad := writeConfig(t, dir, "[window\nwidth = ")
	_, err := Load([]string{"--config=" + bad})
	if err == nil || !strings.Contains(err.Error(), bad) {
		t.Fatalf("expected a decode error naming %s; got %v", bad, err)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	wd, _ := os.Getwd()
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	c, err := Load([]string{"--warp"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Path != "" || !c.Renderer.UseWarp || c.Window.Width != DefaultWidth {
		t.Fatalf("expected defaults plus warp; got %+v", c)
	}
}

func TestWatcherReloads(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "[renderer]\nvsync = true\n")

	w, err := Watch(path, []string{"-w", "640"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	writeConfig(t, filepath.Dir(path), "[renderer]\nvsync = false\n[log]\nlevel = \"warn\"\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-w.Changes():
			// a partially written file may be seen first
			if c.Renderer.VSync || c.Log.Level != "warn" {
				continue
			}
			if c.Window.Width != 640 {
				t.Fatalf("expected command line width to survive reload; got %d", c.Window.Width)
			}
			return
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}
