package core

import (
	"errors"
	"testing"
)

func TestEventBusDispatchOrder(t *testing.T) {
	bus := NewEventBus()

	var calls []string
	first, second := "first", "second"
	handler := func(handled bool) FnOnEvent {
		return func(sender, listener interface{}, e Event) bool {
			calls = append(calls, listener.(string))
			return handled
		}
	}

	if err := bus.Register(EVENT_CODE_RESIZED, first, handler(true)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := bus.Register(EVENT_CODE_RESIZED, second, handler(false)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !bus.Fire(nil, ResizeEvent{Width: 10, Height: 20}) {
		t.Fatal("expected event to be handled")
	}
	if len(calls) != 1 || calls[0] != first {
		t.Fatalf("expected only the first listener to run; got %v", calls)
	}

	if !bus.Unregister(EVENT_CODE_RESIZED, first) {
		t.Fatal("expected unregister to succeed")
	}
	calls = nil
	if bus.Fire(nil, ResizeEvent{}) {
		t.Fatal("expected event to be unhandled")
	}
	if len(calls) != 1 || calls[0] != second {
		t.Fatalf("expected the second listener to run; got %v", calls)
	}
}

func TestEventBusRejectsDuplicates(t *testing.T) {
	bus := NewEventBus()
	noop := func(sender, listener interface{}, e Event) bool { return false }

	if err := bus.Register(EVENT_CODE_KEY_PRESSED, "game", noop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := bus.Register(EVENT_CODE_KEY_PRESSED, "game", noop); !errors.Is(err, ErrListenerRegistered) {
		t.Fatalf("expected ErrListenerRegistered; got %v", err)
	}
	// same listener on another code is fine
	if err := bus.Register(EVENT_CODE_KEY_RELEASED, "game", noop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bus.Unregister(EVENT_CODE_MOUSE_WHEEL, "game") {
		t.Fatal("expected unregister of unknown registration to fail")
	}
}

func TestEventCodes(t *testing.T) {
	type spec struct {
		event Event
		code  EventCode
	}

	specs := []spec{
		{KeyEvent{State: KeyPressed}, EVENT_CODE_KEY_PRESSED},
		{KeyEvent{State: KeyReleased}, EVENT_CODE_KEY_RELEASED},
		{MouseButtonEvent{Pressed: true}, EVENT_CODE_BUTTON_PRESSED},
		{MouseButtonEvent{}, EVENT_CODE_BUTTON_RELEASED},
		{MouseMotionEvent{}, EVENT_CODE_MOUSE_MOVED},
		{MouseWheelEvent{}, EVENT_CODE_MOUSE_WHEEL},
		{ResizeEvent{}, EVENT_CODE_RESIZED},
		{UpdateEvent{}, EVENT_CODE_UPDATE},
		{RenderEvent{}, EVENT_CODE_RENDER},
		{QuitEvent{}, EVENT_CODE_APPLICATION_QUIT},
		{UserEvent{UserCode: 0x1234}, 0x1234},
	}

	for index, s := range specs {
		if got := s.event.Code(); got != s.code {
			t.Fatalf("[spec %d] expected code %#x; got %#x", index, s.code, got)
		}
	}
}
