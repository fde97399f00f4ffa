package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type EventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT EventCode = 0x01
	// Keyboard key pressed. Payload: KeyEvent.
	EVENT_CODE_KEY_PRESSED EventCode = 0x02
	// Keyboard key released. Payload: KeyEvent.
	EVENT_CODE_KEY_RELEASED EventCode = 0x03
	// Mouse button pressed. Payload: MouseButtonEvent.
	EVENT_CODE_BUTTON_PRESSED EventCode = 0x04
	// Mouse button released. Payload: MouseButtonEvent.
	EVENT_CODE_BUTTON_RELEASED EventCode = 0x05
	// Mouse moved. Payload: MouseMotionEvent.
	EVENT_CODE_MOUSE_MOVED EventCode = 0x06
	// Mouse wheel. Payload: MouseWheelEvent.
	EVENT_CODE_MOUSE_WHEEL EventCode = 0x07
	// Resized/resolution changed from the OS. Payload: ResizeEvent.
	EVENT_CODE_RESIZED EventCode = 0x08
	// Once per frame before rendering. Payload: UpdateEvent.
	EVENT_CODE_UPDATE EventCode = 0x09
	// Once per frame. Payload: RenderEvent.
	EVENT_CODE_RENDER EventCode = 0x0A

	MAX_EVENT_CODE EventCode = 0xFF
)

// Event is the closed set of payloads carried by the bus. Consumers
// dispatch on the concrete type with a type switch.
type Event interface {
	Code() EventCode
	event()
}

type KeyState uint8

const (
	KeyReleased KeyState = iota
	KeyPressed
)

type KeyEvent struct {
	Key     KeyCode
	Char    rune
	State   KeyState
	Control bool
	Shift   bool
	Alt     bool
}

func (e KeyEvent) Code() EventCode {
	if e.State == KeyPressed {
		return EVENT_CODE_KEY_PRESSED
	}
	return EVENT_CODE_KEY_RELEASED
}

// Modifiers is the button and modifier key snapshot attached to mouse events.
type Modifiers struct {
	LeftButton   bool
	MiddleButton bool
	RightButton  bool
	Control      bool
	Shift        bool
}

type MouseMotionEvent struct {
	Modifiers
	X, Y int32
	// Movement since the previous motion event.
	RelX, RelY int32
}

func (MouseMotionEvent) Code() EventCode { return EVENT_CODE_MOUSE_MOVED }

type MouseButtonEvent struct {
	Modifiers
	Button  Button
	Pressed bool
	X, Y    int32
}

func (e MouseButtonEvent) Code() EventCode {
	if e.Pressed {
		return EVENT_CODE_BUTTON_PRESSED
	}
	return EVENT_CODE_BUTTON_RELEASED
}

type MouseWheelEvent struct {
	Modifiers
	// Positive away from the user.
	WheelDelta float32
	X, Y       int32
}

func (MouseWheelEvent) Code() EventCode { return EVENT_CODE_MOUSE_WHEEL }

type ResizeEvent struct {
	Width  uint32
	Height uint32
}

func (ResizeEvent) Code() EventCode { return EVENT_CODE_RESIZED }

type UpdateEvent struct {
	ElapsedTime float64
	TotalTime   float64
}

func (UpdateEvent) Code() EventCode { return EVENT_CODE_UPDATE }

type RenderEvent struct {
	ElapsedTime float64
	TotalTime   float64
}

func (RenderEvent) Code() EventCode { return EVENT_CODE_RENDER }

type QuitEvent struct{}

func (QuitEvent) Code() EventCode { return EVENT_CODE_APPLICATION_QUIT }

// UserEvent carries application defined codes (> MAX_EVENT_CODE).
type UserEvent struct {
	UserCode EventCode
	Data1    interface{}
	Data2    interface{}
}

func (e UserEvent) Code() EventCode { return e.UserCode }

func (KeyEvent) event()         {}
func (MouseMotionEvent) event() {}
func (MouseButtonEvent) event() {}
func (MouseWheelEvent) event()  {}
func (ResizeEvent) event()      {}
func (UpdateEvent) event()      {}
func (RenderEvent) event()      {}
func (QuitEvent) event()        {}
func (UserEvent) event()        {}

// Should return true if handled.
type FnOnEvent func(sender interface{}, listener interface{}, event Event) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus fans events out to the listeners registered for their code.
type EventBus struct {
	mu         sync.RWMutex
	registered map[EventCode][]registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[EventCode][]registeredEvent),
	}
}

// Register listens for events with the provided code. A listener can only be
// registered once per code.
func (b *EventBus) Register(code EventCode, listener interface{}, onEvent FnOnEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.registered[code] {
		if e.listener == listener {
			return ErrListenerRegistered
		}
	}
	b.registered[code] = append(b.registered[code], registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return nil
}

// Unregister reports false when no registration for listener was found.
func (b *EventBus) Unregister(code EventCode, listener interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// Fire delivers the event to listeners in registration order. If a handler
// returns true the event is considered handled and is not passed on.
func (b *EventBus) Fire(sender interface{}, event Event) bool {
	b.mu.RLock()
	events := b.registered[event.Code()]
	b.mu.RUnlock()

	for _, e := range events {
		if e.callback(sender, e.listener, event) {
			return true
		}
	}
	return false
}

// Reset drops every registration.
func (b *EventBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registered = make(map[EventCode][]registeredEvent)
}
