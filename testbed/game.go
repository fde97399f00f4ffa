package testbed

import (
	"github.com/spaghettifunk/cadence/engine"
	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/spaghettifunk/cadence/engine/renderer/present"
	"github.com/spaghettifunk/cadence/engine/renderer/queue"
	"golang.org/x/image/math/f32"
)

const (
	minFoV     float32 = 12
	maxFoV     float32 = 90
	defaultFoV float32 = 45
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	// position within the current second of the red fade
	phase  float64
	rising bool
	red    float32

	fov float32

	contentLoaded bool
}

func NewTestGame() *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			Name: "testbed",
			State: &gameState{
				rising: true,
				fov:    defaultFoV,
			},
		},
	}

	tg.FnLoadContent = tg.LoadContent
	tg.FnUnloadContent = tg.UnloadContent
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnKey = tg.OnKey
	tg.FnOnMouseWheel = tg.OnMouseWheel
	tg.FnOnResize = tg.OnResize

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

// LoadContent pushes a batch through the copy queue and waits for it, the
// way uploads are made before the first frame.
func (g *TestGame) LoadContent(w *engine.Window) error {
	core.LogDebug("TestGame LoadContent fn....")

	q := w.Renderer().Queue(queue.Copy)
	ctx, err := q.GetRecordingContext()
	if err != nil {
		return err
	}
	v, err := q.Submit(ctx)
	if err != nil {
		return err
	}
	if err := q.WaitForFenceValue(v); err != nil {
		return err
	}
	g.state().contentLoaded = true
	core.LogInfo("content loaded (copy fence %d)", v)
	return nil
}

func (g *TestGame) UnloadContent(w *engine.Window) {
	g.state().contentLoaded = false
}

func (g *TestGame) Update(w *engine.Window, e core.UpdateEvent) error {
	s := g.state()
	s.phase += e.ElapsedTime
	for s.phase >= 1 {
		s.phase -= 1
		s.rising = !s.rising
	}
	s.red = redChannel(s.phase, s.rising)
	return nil
}

// redChannel fades up over one second and back down over the next.
func redChannel(phase float64, rising bool) float32 {
	v := float32(core.Clamp(phase, 0, 1))
	if rising {
		return v
	}
	return 1 - v
}

func (g *TestGame) Render(w *engine.Window, f *present.Frame, e core.RenderEvent) error {
	cc := w.Config().Renderer.ClearColor
	f.List().ClearRenderTarget(f.Target, f32.Vec4{g.state().red, cc[1], cc[2], 1})
	return nil
}

func (g *TestGame) OnKey(w *engine.Window, e core.KeyEvent) {
	if e.State != core.KeyPressed {
		return
	}
	switch {
	case e.Key == core.KEY_V:
		w.ToggleVSync()
	case e.Key == core.KEY_ESCAPE:
		w.Quit()
	case e.Key == core.KEY_F11, e.Key == core.KEY_ENTER && e.Alt:
		w.ToggleFullscreen()
	}
}

func (g *TestGame) OnMouseWheel(w *engine.Window, e core.MouseWheelEvent) {
	s := g.state()
	s.fov = core.Clamp(s.fov-e.WheelDelta, minFoV, maxFoV)
	core.LogDebug("FoV: %.1f", s.fov)
}

func (g *TestGame) OnResize(w *engine.Window, width, height uint32) error {
	core.LogDebug("testbed resized to %dx%d", width, height)
	return nil
}
