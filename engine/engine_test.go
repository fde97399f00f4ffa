package engine

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/cadence/engine/config"
	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/spaghettifunk/cadence/engine/renderer/present"
	"github.com/spaghettifunk/cadence/engine/renderer/queue"
	"github.com/spaghettifunk/cadence/engine/renderer/software"
	"golang.org/x/image/math/f32"
)

type counters struct {
	loads, unloads  int
	updates, frames int
	keys            int
	resizes         int
	lastW, lastH    uint32
}

func headlessConfig(frames uint64) *config.Config {
	c := config.Default()
	c.Renderer.Headless = true
	c.Renderer.Frames = frames
	c.Renderer.BufferCount = 2
	c.Window.Width = 32
	c.Window.Height = 16
	return c
}

func countingGame(n *counters) *Game {
	return &Game{
		Name: "counting",
		FnLoadContent: func(w *Window) error {
			n.loads++
			return nil
		},
		FnUnloadContent: func(w *Window) {
			n.unloads++
		},
		FnUpdate: func(w *Window, e core.UpdateEvent) error {
			n.updates++
			return nil
		},
		FnRender: func(w *Window, f *present.Frame, e core.RenderEvent) error {
			n.frames++
			f.List().ClearRenderTarget(f.Target, f32.Vec4{0, 1, 0, 1})
			return nil
		},
		FnOnKey: func(w *Window, e core.KeyEvent) {
			n.keys++
		},
		FnOnResize: func(w *Window, width, height uint32) error {
			n.resizes++
			n.lastW, n.lastH = width, height
			return nil
		},
	}
}

func newEngine(t *testing.T, cfg *config.Config, g *Game) *Engine {
	t.Helper()
	e, err := New(cfg, nil, g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = e.Shutdown() })
	return e
}

func TestNewRequiresRender(t *testing.T) {
	if _, err := New(config.Default(), nil, &Game{}); err == nil {
		t.Fatal("expected an error for a game without a render callback")
	}
}

func TestInitializeTwice(t *testing.T) {
	e := newEngine(t, headlessConfig(1), countingGame(&counters{}))
	if err := e.Initialize(); !errors.Is(err, core.ErrEngineInitialized) {
		t.Fatalf("expected ErrEngineInitialized; got %v", err)
	}
}

func TestHeadlessRunStopsAfterFrameLimit(t *testing.T) {
	var n counters
	e := newEngine(t, headlessConfig(4), countingGame(&n))

	if err := e.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.loads != 1 || n.updates != 4 || n.frames != 4 {
		t.Fatalf("expected 1 load, 4 updates and 4 frames; got %+v", n)
	}
	if got := e.Window().FrameCount(); got != 4 {
		t.Fatalf("expected frame count 4; got %d", got)
	}

	sc := e.Renderer().Surface().(*software.SwapChain)
	if err := e.Renderer().Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if presents, sync := sc.Presents(); presents != 4 || sync != 1 {
		t.Fatalf("expected 4 presents with sync interval 1; got %d, %d", presents, sync)
	}
	for slot := uint32(0); slot < 2; slot++ {
		if got := sc.Buffer(slot).At(0, 0); got.G != 255 {
			t.Fatalf("expected back buffer %d to be cleared green; got %v", slot, got)
		}
	}

	if err := e.Shutdown(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.unloads != 1 {
		t.Fatalf("expected content to be unloaded once; got %d", n.unloads)
	}
	if err := e.Shutdown(); err != nil {
		t.Fatalf("expected second shutdown to be a no-op; got %v", err)
	}
}

func TestQuitFromUpdate(t *testing.T) {
	var n counters
	g := countingGame(&n)
	g.FnUpdate = func(w *Window, e core.UpdateEvent) error {
		n.updates++
		if n.updates == 2 {
			w.Quit()
		}
		return nil
	}
	e := newEngine(t, headlessConfig(0), g)

	if err := e.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// the frame that asked to quit still renders
	if n.updates != 2 || n.frames != 2 {
		t.Fatalf("expected 2 updates and 2 frames; got %+v", n)
	}
}

func TestQuitEvent(t *testing.T) {
	var n counters
	g := countingGame(&n)
	var e *Engine
	g.FnUpdate = func(w *Window, ev core.UpdateEvent) error {
		n.updates++
		e.bus.Fire(w, core.QuitEvent{})
		return nil
	}
	e = newEngine(t, headlessConfig(0), g)

	if err := e.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.updates != 1 {
		t.Fatalf("expected a single update; got %d", n.updates)
	}
}

func TestRenderFailureDiscardsFrame(t *testing.T) {
	errBoom := errors.New("boom")
	var n counters
	g := countingGame(&n)
	g.FnRender = func(w *Window, f *present.Frame, e core.RenderEvent) error {
		return errBoom
	}
	e := newEngine(t, headlessConfig(0), g)

	if err := e.Run(); !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom; got %v", err)
	}
	stats := e.Renderer().Queue(queue.Direct).Stats()
	if stats.Discards != 1 || stats.Submissions != 0 {
		t.Fatalf("expected 1 discard and no submissions; got %d, %d", stats.Discards, stats.Submissions)
	}
}

func TestResizeEvent(t *testing.T) {
	var n counters
	e := newEngine(t, headlessConfig(0), countingGame(&n))

	if n.resizes != 1 || n.lastW != 32 || n.lastH != 16 {
		t.Fatalf("expected the initial size to be reported; got %+v", n)
	}

	e.bus.Fire(nil, core.ResizeEvent{Width: 0, Height: 40})
	if n.lastW != 1 || n.lastH != 40 {
		t.Fatalf("expected game to see 1x40; got %dx%d", n.lastW, n.lastH)
	}
	if w, h := e.Window().Size(); w != 1 || h != 40 {
		t.Fatalf("expected window size 1x40; got %dx%d", w, h)
	}
	sc := e.Renderer().Surface().(*software.SwapChain)
	if w, h := sc.Size(); w != 1 || h != 40 {
		t.Fatalf("expected back buffers of 1x40; got %dx%d", w, h)
	}
}

func TestEventsStopAfterDestroy(t *testing.T) {
	var n counters
	e := newEngine(t, headlessConfig(0), countingGame(&n))

	e.input.ProcessKey(core.KEY_V, 'v', true)
	if n.keys != 1 {
		t.Fatalf("expected 1 key event; got %d", n.keys)
	}

	e.Window().Destroy()
	if n.unloads != 1 {
		t.Fatalf("expected content to be unloaded; got %d", n.unloads)
	}
	e.input.ProcessKey(core.KEY_V, 'v', false)
	if n.keys != 1 {
		t.Fatalf("expected no key events after destroy; got %d", n.keys)
	}
}

func TestVSyncToggle(t *testing.T) {
	e := newEngine(t, headlessConfig(0), countingGame(&counters{}))
	w := e.Window()

	if !w.VSync() {
		t.Fatal("expected vsync to default to on")
	}
	if w.ToggleVSync() {
		t.Fatal("expected vsync to be off after toggling")
	}
	// headless windows have no fullscreen mode
	if w.ToggleFullscreen() {
		t.Fatal("expected headless window to stay windowed")
	}
}

func TestApplyConfig(t *testing.T) {
	e := newEngine(t, headlessConfig(0), countingGame(&counters{}))

	c := headlessConfig(0)
	c.Renderer.VSync = false
	c.Renderer.ClearColor = [3]float32{1, 1, 1}
	e.applyConfig(c)

	if e.Window().VSync() {
		t.Fatal("expected reloaded configuration to disable vsync")
	}
	if got := e.Window().Config().Renderer.ClearColor; got != [3]float32{1, 1, 1} {
		t.Fatalf("expected the reloaded clear color; got %v", got)
	}
}
