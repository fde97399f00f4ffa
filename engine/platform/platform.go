package platform

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/config"
	"github.com/spaghettifunk/cadence/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type windowRect struct {
	x, y, width, height int
}

// Platform owns the OS window and forwards its callbacks to the input
// state and the event bus.
type Platform struct {
	Window *glfw.Window

	bus   *core.EventBus
	input *core.Input

	fullscreen bool
	windowed   windowRect
	startTime  float64
}

func New(bus *core.EventBus, input *core.Input) *Platform {
	return &Platform{bus: bus, input: input}
}

func (p *Platform) Startup(cfg config.WindowConfig) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return fmt.Errorf("platform: no Vulkan loader found")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(cfg.Width), int(cfg.Height), cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		core.LogError("failed to create window: %s", err)
		return err
	}
	p.Window = window
	p.windowed = windowRect{int(cfg.StartPosX), int(cfg.StartPosY), int(cfg.Width), int(cfg.Height)}

	window.SetKeyCallback(p.keyCallback)
	window.SetMouseButtonCallback(p.mouseButtonCallback)
	window.SetCursorPosCallback(p.cursorPosCallback)
	window.SetScrollCallback(p.scrollCallback)
	window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	window.SetCloseCallback(p.closeCallback)
	window.SetPos(int(cfg.StartPosX), int(cfg.StartPosY))
	if cfg.Fullscreen {
		p.SetFullscreen(true)
	}
	window.Show()

	p.startTime = glfw.GetTime()
	return nil
}

func (p *Platform) Shutdown() {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
}

// PumpMessages dispatches pending OS events to the callbacks.
func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

// GetAbsoluteTime is the time in seconds since the window was created.
func (p *Platform) GetAbsoluteTime() float64 {
	return glfw.GetTime() - p.startTime
}

func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(core.AtLeast(w, 1)), uint32(core.AtLeast(h, 1))
}

func (p *Platform) Fullscreen() bool {
	return p.fullscreen
}

// SetFullscreen switches between a borderless window covering the primary
// monitor and the last windowed placement.
func (p *Platform) SetFullscreen(on bool) {
	if on == p.fullscreen {
		return
	}
	p.fullscreen = on
	if on {
		x, y := p.Window.GetPos()
		w, h := p.Window.GetSize()
		p.windowed = windowRect{x, y, w, h}
		monitor := glfw.GetPrimaryMonitor()
		mode := monitor.GetVideoMode()
		p.Window.SetMonitor(monitor, 0, 0, mode.Width, mode.Height, mode.RefreshRate)
		return
	}
	p.Window.SetMonitor(nil, p.windowed.x, p.windowed.y, p.windowed.width, p.windowed.height, 0)
}

func (p *Platform) SetTitle(title string) {
	p.Window.SetTitle(title)
}

func (p *Platform) RequiredExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, err
	}
	return vk.SurfaceFromPointer(surface), nil
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	p.input.ProcessModifiers(mods&glfw.ModControl != 0, mods&glfw.ModShift != 0, mods&glfw.ModAlt != 0)
	code, char := translateKey(key, mods&glfw.ModShift != 0)
	p.input.ProcessKey(code, char, action != glfw.Release)
}

func (p *Platform) mouseButtonCallback(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	p.input.ProcessModifiers(mods&glfw.ModControl != 0, mods&glfw.ModShift != 0, mods&glfw.ModAlt != 0)
	var b core.Button
	switch button {
	case glfw.MouseButtonLeft:
		b = core.BUTTON_LEFT
	case glfw.MouseButtonRight:
		b = core.BUTTON_RIGHT
	case glfw.MouseButtonMiddle:
		b = core.BUTTON_MIDDLE
	default:
		return
	}
	p.input.ProcessButton(b, action == glfw.Press)
}

func (p *Platform) cursorPosCallback(w *glfw.Window, xpos, ypos float64) {
	p.input.ProcessMouseMove(int32(xpos), int32(ypos))
}

func (p *Platform) scrollCallback(w *glfw.Window, xoff, yoff float64) {
	p.input.ProcessMouseWheel(float32(yoff))
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.bus.Fire(p, core.ResizeEvent{
		Width:  uint32(core.AtLeast(width, 1)),
		Height: uint32(core.AtLeast(height, 1)),
	})
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.bus.Fire(p, core.QuitEvent{})
}

func translateKey(key glfw.Key, shift bool) (core.KeyCode, rune) {
	switch {
	case key >= glfw.KeyA && key <= glfw.KeyZ:
		code := core.KEY_A + core.KeyCode(key-glfw.KeyA)
		char := 'a' + rune(key-glfw.KeyA)
		if shift {
			char = 'A' + rune(key-glfw.KeyA)
		}
		return code, char
	case key >= glfw.Key0 && key <= glfw.Key9:
		return core.KEY_0 + core.KeyCode(key-glfw.Key0), '0' + rune(key-glfw.Key0)
	case key >= glfw.KeyF1 && key <= glfw.KeyF12:
		return core.KEY_F1 + core.KeyCode(key-glfw.KeyF1), 0
	}
	switch key {
	case glfw.KeyBackspace:
		return core.KEY_BACKSPACE, '\b'
	case glfw.KeyTab:
		return core.KEY_TAB, '\t'
	case glfw.KeyEnter, glfw.KeyKPEnter:
		return core.KEY_ENTER, '\r'
	case glfw.KeyPause:
		return core.KEY_PAUSE, 0
	case glfw.KeyEscape:
		return core.KEY_ESCAPE, 0
	case glfw.KeySpace:
		return core.KEY_SPACE, ' '
	case glfw.KeyLeft:
		return core.KEY_LEFT, 0
	case glfw.KeyUp:
		return core.KEY_UP, 0
	case glfw.KeyRight:
		return core.KEY_RIGHT, 0
	case glfw.KeyDown:
		return core.KEY_DOWN, 0
	case glfw.KeyLeftShift:
		return core.KEY_LSHIFT, 0
	case glfw.KeyRightShift:
		return core.KEY_RSHIFT, 0
	case glfw.KeyLeftControl:
		return core.KEY_LCONTROL, 0
	case glfw.KeyRightControl:
		return core.KEY_RCONTROL, 0
	case glfw.KeyLeftAlt:
		return core.KEY_LMENU, 0
	case glfw.KeyRightAlt:
		return core.KEY_RMENU, 0
	}
	return core.KEY_UNKNOWN, 0
}
