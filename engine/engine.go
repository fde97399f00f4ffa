package engine

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/cadence/engine/config"
	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/spaghettifunk/cadence/engine/platform"
	"github.com/spaghettifunk/cadence/engine/renderer"
	"github.com/spaghettifunk/cadence/engine/renderer/present"
	"github.com/spaghettifunk/cadence/engine/renderer/queue"
	"github.com/spaghettifunk/cadence/engine/renderer/software"
	"github.com/spaghettifunk/cadence/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released everything it owned
	EngineStageShutdown
)

type Engine struct {
	stage  Stage
	config *config.Config
	args   []string
	game   *Game

	bus      *core.EventBus
	input    *core.Input
	platform *platform.Platform
	renderer *renderer.Context
	games    *core.Registry[*Game]
	window   *Window
	watcher  *config.Watcher

	quit atomic.Bool
	// first error raised from an event handler, ends the run
	eventErr error
}

// New prepares an engine for g. args are the command line flags cfg was
// loaded from; configuration reloads apply them again.
func New(cfg *config.Config, args []string, g *Game) (*Engine, error) {
	if g == nil || g.FnRender == nil {
		return nil, errors.New("engine: game must provide a render callback")
	}
	bus := core.NewEventBus()
	return &Engine{
		stage:  EngineStageUninitialized,
		config: cfg,
		args:   args,
		game:   g,
		bus:    bus,
		input:  core.NewInput(bus),
		games:  core.NewRegistry[*Game](),
	}, nil
}

func (e *Engine) Initialize() error {
	if e.stage != EngineStageUninitialized {
		return core.ErrEngineInitialized
	}
	e.stage = EngineStageInitializing

	if err := core.SetLogLevel(e.config.Log.Level); err != nil {
		core.LogWarn("unknown log level %q: %s", e.config.Log.Level, err)
	}

	width, height := e.config.Window.Width, e.config.Window.Height
	var (
		backend renderer.Backend
		surface present.Surface
	)
	if e.config.Renderer.Headless {
		dev := software.NewDevice(software.Options{})
		backend = dev
		surface = dev.NewSwapChain(e.config.Renderer.BufferCount, width, height)
	} else {
		e.platform = platform.New(e.bus, e.input)
		if err := e.platform.Startup(e.config.Window); err != nil {
			return err
		}
		width, height = e.platform.FramebufferSize()
		vb, err := vulkan.New(e.platform, vulkan.Options{
			AppName:     e.config.Window.Title,
			Validation:  e.config.Renderer.Validation,
			PreferCPU:   e.config.Renderer.UseWarp,
			BufferCount: e.config.Renderer.BufferCount,
			Width:       width,
			Height:      height,
		})
		if err != nil {
			e.platform.Shutdown()
			e.platform = nil
			return err
		}
		backend = vb
		surface = vb.Swapchain()
	}

	rc, err := renderer.NewContext(backend, surface, width, height, e.config.Renderer.VSync)
	if err != nil {
		backend.Close()
		return err
	}
	e.renderer = rc

	e.window = newWindow(e, e.config.Window.Title, width, height)
	e.window.attach(e.game)

	for _, code := range []core.EventCode{
		core.EVENT_CODE_KEY_PRESSED,
		core.EVENT_CODE_KEY_RELEASED,
		core.EVENT_CODE_MOUSE_MOVED,
		core.EVENT_CODE_BUTTON_PRESSED,
		core.EVENT_CODE_BUTTON_RELEASED,
		core.EVENT_CODE_MOUSE_WHEEL,
	} {
		if err := e.bus.Register(code, e.window, e.window.onEvent); err != nil {
			return err
		}
	}
	if err := e.bus.Register(core.EVENT_CODE_RESIZED, e, e.onResized); err != nil {
		return err
	}
	if err := e.bus.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onQuit); err != nil {
		return err
	}

	if e.config.Path != "" {
		w, err := config.Watch(e.config.Path, e.args)
		if err != nil {
			core.LogWarn("configuration changes will not be picked up: %s", err)
		} else {
			e.watcher = w
		}
	}

	if err := e.window.loadContent(); err != nil {
		return err
	}
	if err := e.window.OnResize(width, height); err != nil {
		return err
	}

	e.stage = EngineStageInitialized
	core.LogInfo("engine initialized on %s", backend.Name())
	return nil
}

// Run drives frames until Quit is called, the configured frame count is
// reached or rendering fails.
func (e *Engine) Run() error {
	if e.stage != EngineStageInitialized {
		return fmt.Errorf("engine: run called in stage %d", e.stage)
	}
	e.stage = EngineStageRunning
	limit := e.config.Renderer.Frames

	for !e.quit.Load() {
		if e.platform != nil {
			e.platform.PumpMessages()
		}
		e.applyConfigChanges()
		if e.eventErr != nil {
			return e.eventErr
		}
		if e.quit.Load() {
			break
		}

		if err := e.window.update(); err != nil {
			core.LogError("game update failed, shutting down: %s", err)
			return err
		}
		if err := e.window.render(); err != nil {
			core.LogError("render failed, shutting down: %s", err)
			return err
		}
		// Input state is copied last, after everything this frame could
		// have recorded.
		e.input.Update()

		if limit > 0 && e.window.FrameCount() >= limit {
			core.LogInfo("rendered %d frames", limit)
			break
		}
	}
	return nil
}

// Quit is safe to call from any goroutine. A quit requested before Run
// makes Run return without rendering.
func (e *Engine) Quit() {
	e.quit.Store(true)
}

func (e *Engine) Window() *Window {
	return e.window
}

func (e *Engine) Renderer() *renderer.Context {
	return e.renderer
}

// Shutdown waits for all queues to finish before releasing anything.
func (e *Engine) Shutdown() error {
	if e.stage == EngineStageShutdown {
		return nil
	}
	e.stage = EngineStageShuttingDown
	e.Quit()

	var errs []error
	if e.window != nil {
		e.window.Destroy()
	}
	if e.renderer != nil {
		if err := e.renderer.Flush(); err != nil {
			errs = append(errs, err)
		}
		core.LogDebug("queue statistics:\n%s", e.renderer.Stats())
		if err := e.renderer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.platform != nil {
		e.platform.Shutdown()
	}
	e.bus.Reset()
	e.stage = EngineStageShutdown
	core.LogInfo("engine shut down")
	return errors.Join(errs...)
}

// applyConfigChanges picks up the newest reloaded configuration, if any.
func (e *Engine) applyConfigChanges() {
	if e.watcher == nil {
		return
	}
	select {
	case c := <-e.watcher.Changes():
		e.applyConfig(c)
	default:
	}
}

func (e *Engine) applyConfig(c *config.Config) {
	if c.Log.Level != e.config.Log.Level {
		if err := core.SetLogLevel(c.Log.Level); err != nil {
			core.LogWarn("unknown log level %q: %s", c.Log.Level, err)
		}
	}
	if c.Renderer.VSync != e.window.VSync() {
		e.window.SetVSync(c.Renderer.VSync)
		core.LogInfo("vsync %v", c.Renderer.VSync)
	}
	if c.Window.Fullscreen != e.window.Fullscreen() {
		e.window.SetFullscreen(c.Window.Fullscreen)
	}
	c.Path = e.config.Path
	e.config = c
}

func (e *Engine) onResized(sender interface{}, listener interface{}, event core.Event) bool {
	r, ok := event.(core.ResizeEvent)
	if !ok {
		return false
	}
	if err := e.window.OnResize(r.Width, r.Height); err != nil {
		core.LogError("resize to %dx%d: %s", r.Width, r.Height, err)
		if errors.Is(err, queue.ErrDeviceLost) && e.eventErr == nil {
			e.eventErr = err
		}
	}
	return false
}

func (e *Engine) onQuit(sender interface{}, listener interface{}, event core.Event) bool {
	core.LogInfo("quit requested")
	e.Quit()
	return true
}
