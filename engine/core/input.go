package core

type Button uint16

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

// Key code definitions, virtual key values.
type KeyCode uint16

const (
	KEY_UNKNOWN   KeyCode = 0x00
	KEY_BACKSPACE KeyCode = 0x08
	KEY_TAB       KeyCode = 0x09
	KEY_ENTER     KeyCode = 0x0D
	KEY_SHIFT     KeyCode = 0x10
	KEY_CONTROL   KeyCode = 0x11
	KEY_ALT       KeyCode = 0x12
	KEY_PAUSE     KeyCode = 0x13
	KEY_ESCAPE    KeyCode = 0x1B
	KEY_SPACE     KeyCode = 0x20
	KEY_LEFT      KeyCode = 0x25
	KEY_UP        KeyCode = 0x26
	KEY_RIGHT     KeyCode = 0x27
	KEY_DOWN      KeyCode = 0x28
	KEY_0         KeyCode = 0x30
	KEY_9         KeyCode = 0x39
	KEY_A         KeyCode = 0x41
	KEY_F         KeyCode = 0x46
	KEY_V         KeyCode = 0x56
	KEY_Z         KeyCode = 0x5A
	KEY_F1        KeyCode = 0x70
	KEY_F11       KeyCode = 0x7A
	KEY_F12       KeyCode = 0x7B
	KEY_LSHIFT    KeyCode = 0xA0
	KEY_RSHIFT    KeyCode = 0xA1
	KEY_LCONTROL  KeyCode = 0xA2
	KEY_RCONTROL  KeyCode = 0xA3
	KEY_LMENU     KeyCode = 0xA4
	KEY_RMENU     KeyCode = 0xA5
	KEYS_MAX_KEYS KeyCode = 0x100
)

// Mouse state structure
type MouseState struct {
	X       int32
	Y       int32
	Buttons [BUTTON_MAX_BUTTONS]bool
}

// Keyboard state structure
type KeyboardState struct {
	Keys [KEYS_MAX_KEYS]bool
}

// Input holds current and previous states for keyboard and mouse and turns
// state changes into events on the bus.
type Input struct {
	bus              *EventBus
	keyboardCurrent  KeyboardState
	keyboardPrevious KeyboardState
	mouseCurrent     MouseState
	mousePrevious    MouseState
	// last position reported by a motion event, for relative movement
	lastMotionX int32
	lastMotionY int32
}

func NewInput(bus *EventBus) *Input {
	return &Input{bus: bus}
}

// Update copies current states to previous states. Call once per frame.
func (in *Input) Update() {
	in.keyboardPrevious = in.keyboardCurrent
	in.mousePrevious = in.mouseCurrent
}

func (in *Input) IsKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && in.keyboardCurrent.Keys[key]
}

func (in *Input) WasKeyDown(key KeyCode) bool {
	return key < KEYS_MAX_KEYS && in.keyboardPrevious.Keys[key]
}

func (in *Input) IsButtonDown(button Button) bool {
	return button < BUTTON_MAX_BUTTONS && in.mouseCurrent.Buttons[button]
}

func (in *Input) WasButtonDown(button Button) bool {
	return button < BUTTON_MAX_BUTTONS && in.mousePrevious.Buttons[button]
}

func (in *Input) MousePosition() (int32, int32) {
	return in.mouseCurrent.X, in.mouseCurrent.Y
}

func (in *Input) modifiers() Modifiers {
	return Modifiers{
		LeftButton:   in.mouseCurrent.Buttons[BUTTON_LEFT],
		MiddleButton: in.mouseCurrent.Buttons[BUTTON_MIDDLE],
		RightButton:  in.mouseCurrent.Buttons[BUTTON_RIGHT],
		Control:      in.keyboardCurrent.Keys[KEY_CONTROL],
		Shift:        in.keyboardCurrent.Keys[KEY_SHIFT],
	}
}

// ProcessKey fires a KeyEvent. Repeats of a held key are reported as
// presses, as the OS delivers them.
func (in *Input) ProcessKey(key KeyCode, char rune, pressed bool) {
	if key >= KEYS_MAX_KEYS {
		return
	}
	in.keyboardCurrent.Keys[key] = pressed

	state := KeyReleased
	if pressed {
		state = KeyPressed
	}
	in.bus.Fire(in, KeyEvent{
		Key:     key,
		Char:    char,
		State:   state,
		Control: in.keyboardCurrent.Keys[KEY_CONTROL],
		Shift:   in.keyboardCurrent.Keys[KEY_SHIFT],
		Alt:     in.keyboardCurrent.Keys[KEY_ALT],
	})
}

// ProcessModifiers records the modifier keys reported alongside an OS event.
func (in *Input) ProcessModifiers(control, shift, alt bool) {
	in.keyboardCurrent.Keys[KEY_CONTROL] = control
	in.keyboardCurrent.Keys[KEY_SHIFT] = shift
	in.keyboardCurrent.Keys[KEY_ALT] = alt
}

func (in *Input) ProcessButton(button Button, pressed bool) {
	if button >= BUTTON_MAX_BUTTONS {
		return
	}
	// Only fire if the state changed.
	if in.mouseCurrent.Buttons[button] == pressed {
		return
	}
	in.mouseCurrent.Buttons[button] = pressed
	in.bus.Fire(in, MouseButtonEvent{
		Modifiers: in.modifiers(),
		Button:    button,
		Pressed:   pressed,
		X:         in.mouseCurrent.X,
		Y:         in.mouseCurrent.Y,
	})
}

func (in *Input) ProcessMouseMove(x, y int32) {
	// Only process if actually different
	if in.mouseCurrent.X == x && in.mouseCurrent.Y == y {
		return
	}
	in.mouseCurrent.X = x
	in.mouseCurrent.Y = y

	e := MouseMotionEvent{
		Modifiers: in.modifiers(),
		X:         x,
		Y:         y,
		RelX:      x - in.lastMotionX,
		RelY:      y - in.lastMotionY,
	}
	in.lastMotionX = x
	in.lastMotionY = y
	in.bus.Fire(in, e)
}

func (in *Input) ProcessMouseWheel(delta float32) {
	in.bus.Fire(in, MouseWheelEvent{
		Modifiers:  in.modifiers(),
		WheelDelta: delta,
		X:          in.mouseCurrent.X,
		Y:          in.mouseCurrent.Y,
	})
}
