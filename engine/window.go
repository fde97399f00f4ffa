package engine

import (
	"fmt"

	"github.com/spaghettifunk/cadence/engine/config"
	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/spaghettifunk/cadence/engine/platform"
	"github.com/spaghettifunk/cadence/engine/renderer"
	"github.com/spaghettifunk/cadence/engine/renderer/present"
)

// Window drives a game: it forwards input and resize events, runs the
// update and render callbacks and keeps the frame statistics. The game is
// referenced through a registry handle and stops receiving callbacks once
// it is released.
type Window struct {
	name     string
	engine   *Engine
	platform *platform.Platform
	renderer *renderer.Context

	games *core.Registry[*Game]
	game  core.Handle

	updateClock *core.Clock
	renderClock *core.Clock
	metrics     *core.Metrics
	frames      uint64

	width  uint32
	height uint32
}

func newWindow(e *Engine, name string, width, height uint32) *Window {
	return &Window{
		name:        name,
		engine:      e,
		platform:    e.platform,
		renderer:    e.renderer,
		games:       e.games,
		updateClock: core.NewClock(),
		renderClock: core.NewClock(),
		metrics:     core.NewMetrics(),
		width:       core.AtLeast(width, 1),
		height:      core.AtLeast(height, 1),
	}
}

func (w *Window) Name() string {
	return w.name
}

func (w *Window) Size() (uint32, uint32) {
	return w.width, w.height
}

func (w *Window) Renderer() *renderer.Context {
	return w.renderer
}

// Config is the current configuration, replaced on every reload.
func (w *Window) Config() *config.Config {
	return w.engine.config
}

// FrameCount is the number of frames rendered so far.
func (w *Window) FrameCount() uint64 {
	return w.frames
}

func (w *Window) FPS() float64 {
	return w.metrics.FPS()
}

func (w *Window) VSync() bool {
	return w.renderer.Loop().VSync()
}

func (w *Window) SetVSync(enabled bool) {
	w.renderer.Loop().SetVSync(enabled)
}

func (w *Window) ToggleVSync() bool {
	on := w.renderer.Loop().ToggleVSync()
	core.LogInfo("vsync %v", on)
	return on
}

// Fullscreen is always false for headless windows.
func (w *Window) Fullscreen() bool {
	return w.platform != nil && w.platform.Fullscreen()
}

func (w *Window) SetFullscreen(on bool) {
	if w.platform == nil {
		return
	}
	w.platform.SetFullscreen(on)
}

func (w *Window) ToggleFullscreen() bool {
	w.SetFullscreen(!w.Fullscreen())
	return w.Fullscreen()
}

// Quit stops the engine after the current frame.
func (w *Window) Quit() {
	w.engine.Quit()
}

func (w *Window) attach(g *Game) {
	w.game = w.games.Acquire(g)
}

func (w *Window) resolve() (*Game, bool) {
	return w.games.Lookup(w.game)
}

func (w *Window) loadContent() error {
	w.updateClock.Start()
	w.renderClock.Start()
	g, ok := w.resolve()
	if !ok || g.FnLoadContent == nil {
		return nil
	}
	if err := g.FnLoadContent(w); err != nil {
		return fmt.Errorf("load content for %s: %w", g.Name, err)
	}
	return nil
}

// Destroy unloads the game content and releases the game.
func (w *Window) Destroy() {
	g, ok := w.resolve()
	if !ok {
		return
	}
	if g.FnUnloadContent != nil {
		g.FnUnloadContent(w)
	}
	if err := w.games.Release(w.game); err != nil {
		core.LogWarn("release game %s: %s", g.Name, err)
	}
}

func (w *Window) update() error {
	w.updateClock.Tick()
	e := core.UpdateEvent{
		ElapsedTime: w.updateClock.DeltaSeconds(),
		TotalTime:   w.updateClock.TotalSeconds(),
	}
	if g, ok := w.resolve(); ok && g.FnUpdate != nil {
		if err := g.FnUpdate(w, e); err != nil {
			return err
		}
	}
	w.engine.bus.Fire(w, e)
	return nil
}

func (w *Window) render() error {
	w.renderClock.Tick()
	e := core.RenderEvent{
		ElapsedTime: w.renderClock.DeltaSeconds(),
		TotalTime:   w.renderClock.TotalSeconds(),
	}

	g, ok := w.resolve()
	err := w.renderer.Loop().Render(func(f *present.Frame) error {
		if !ok || g.FnRender == nil {
			return nil
		}
		return g.FnRender(w, f, e)
	})
	if err != nil {
		return err
	}
	w.frames++

	if w.metrics.Update(e.ElapsedTime) {
		core.LogDebug("%s: %.2f fps (%.3f ms)", w.name, w.metrics.FPS(), w.metrics.FrameTime())
		if w.platform != nil {
			w.platform.SetTitle(fmt.Sprintf("%s - %.0f fps", w.name, w.metrics.FPS()))
		}
	}
	w.engine.bus.Fire(w, e)
	return nil
}

// OnResize resizes the back buffers before the game sees the new size.
// Zero dimensions are raised to 1.
func (w *Window) OnResize(width, height uint32) error {
	width = core.AtLeast(width, 1)
	height = core.AtLeast(height, 1)
	if err := w.renderer.Loop().Resize(width, height); err != nil {
		return err
	}
	w.width, w.height = width, height
	if g, ok := w.resolve(); ok && g.FnOnResize != nil {
		return g.FnOnResize(w, width, height)
	}
	return nil
}

func (w *Window) onEvent(sender interface{}, listener interface{}, event core.Event) bool {
	g, ok := w.resolve()
	if !ok {
		return false
	}
	switch e := event.(type) {
	case core.KeyEvent:
		if g.FnOnKey != nil {
			g.FnOnKey(w, e)
		}
	case core.MouseMotionEvent:
		if g.FnOnMouseMove != nil {
			g.FnOnMouseMove(w, e)
		}
	case core.MouseButtonEvent:
		if g.FnOnMouseButton != nil {
			g.FnOnMouseButton(w, e)
		}
	case core.MouseWheelEvent:
		if g.FnOnMouseWheel != nil {
			g.FnOnMouseWheel(w, e)
		}
	}
	return false
}
