package engine

import (
	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/spaghettifunk/cadence/engine/renderer/present"
)

// Game is the set of callbacks a window drives. Only FnRender is required.
type Game struct {
	Name  string
	State interface{}

	FnLoadContent   LoadContent
	FnUnloadContent UnloadContent
	FnUpdate        Update
	FnRender        Render
	FnOnKey         OnKey
	FnOnMouseMove   OnMouseMove
	FnOnMouseButton OnMouseButton
	FnOnMouseWheel  OnMouseWheel
	FnOnResize      OnResize
}

type LoadContent func(w *Window) error
type UnloadContent func(w *Window)
type Update func(w *Window, e core.UpdateEvent) error

// Render records the frame. The back buffer is already a render target.
type Render func(w *Window, f *present.Frame, e core.RenderEvent) error
type OnKey func(w *Window, e core.KeyEvent)
type OnMouseMove func(w *Window, e core.MouseMotionEvent)
type OnMouseButton func(w *Window, e core.MouseButtonEvent)
type OnMouseWheel func(w *Window, e core.MouseWheelEvent)
type OnResize func(w *Window, width, height uint32) error
