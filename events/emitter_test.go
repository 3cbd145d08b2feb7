package events

import (
	"testing"
)

type listObserver struct {
	seen []Event
}

func (o *listObserver) OnEvent(event Event) {
	o.seen = append(o.seen, event)
}

func TestEmitterFanOut(t *testing.T) {
	emitter := NewEmitter()
	first := &listObserver{}
	second := &listObserver{}
	emitter.AddObserver(first)
	emitter.AddObserver(second)

	emitter.Emit(New(ReasoningStep, map[string]interface{}{"step_number": "1"}))
	emitter.Emit(NewError(FailureTrace, nil))

	for _, obs := range []*listObserver{first, second} {
		if len(obs.seen) != 2 {
			t.Fatalf("observer saw %d events, want 2", len(obs.seen))
		}
		if obs.seen[0].Name != ReasoningStep || obs.seen[0].Level != LevelInfo {
			t.Errorf("first event = %q level %q", obs.seen[0].Name, obs.seen[0].Level)
		}
		if obs.seen[1].Name != FailureTrace || obs.seen[1].Level != LevelError {
			t.Errorf("second event = %q level %q", obs.seen[1].Name, obs.seen[1].Level)
		}
	}
}

func TestEmitterNoObservers(t *testing.T) {
	emitter := NewEmitter()
	emitter.Emit(New(ModelInput, nil)) // must not panic
}

func TestMultiOrder(t *testing.T) {
	var order []string
	a := SinkFunc(func(Event) { order = append(order, "a") })
	b := SinkFunc(func(Event) { order = append(order, "b") })

	Multi(a, b, Discard).Emit(New(ToolInvocation, nil))

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("delivery order = %v", order)
	}
}

func TestLogObserverNilLogger(t *testing.T) {
	LogObserver{}.OnEvent(NewError(FailureTrace, nil)) // must not panic
}

func TestEventConstructors(t *testing.T) {
	info := New(ModelOutput, map[string]interface{}{"k": "v"})
	if info.Level != LevelInfo || info.Timestamp.IsZero() || info.Metadata["k"] != "v" {
		t.Errorf("unexpected info event: %+v", info)
	}

	errEvent := NewError(FailureTrace, nil)
	if errEvent.Level != LevelError || errEvent.Timestamp.IsZero() {
		t.Errorf("unexpected error event: %+v", errEvent)
	}
}
