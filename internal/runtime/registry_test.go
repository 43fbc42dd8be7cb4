package runtime

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/playground/internal/errors"
	"github.com/Iron-Ham/playground/internal/event"
)

func testRuntimes() []Runtime {
	return []Runtime{
		{ID: "a", Name: "A", Template: "<A/>"},
		{ID: "b", Name: "B", Template: "<B/>"},
		{ID: "c", Name: "C", Template: "<C/>"},
	}
}

func recordRuntimeChanges(bus *event.Bus) *[]event.RuntimeChangedEvent {
	var got []event.RuntimeChangedEvent
	bus.Subscribe(event.TopicRuntimeChanged, func(e event.Event) {
		got = append(got, e.(event.RuntimeChangedEvent))
	})
	return &got
}

func TestRegistry_Init(t *testing.T) {
	tests := []struct {
		name      string
		preferred string
		wantID    string
	}{
		{"first registered by default", "", "a"},
		{"preferred id", "b", "b"},
		{"unknown preferred falls back", "zzz", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := event.NewBus()
			changes := recordRuntimeChanges(bus)

			r := NewRegistry(bus, testRuntimes()...)
			if r.Active() != nil {
				t.Fatal("Active() should be nil before Init")
			}
			if err := r.Init(tt.preferred); err != nil {
				t.Fatalf("Init() error = %v", err)
			}

			if got := r.Active().ID; got != tt.wantID {
				t.Errorf("Active().ID = %q, want %q", got, tt.wantID)
			}
			if len(*changes) != 1 {
				t.Fatalf("Init should publish exactly one runtime change, got %d", len(*changes))
			}
			if c := (*changes)[0]; c.PreviousID != "" || c.CurrentID != tt.wantID {
				t.Errorf("unexpected init event: %+v", c)
			}
		})
	}
}

func TestRegistry_InitErrors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		r := NewRegistry(event.NewBus())
		if err := r.Init(""); !errors.Is(err, errors.ErrNoRuntimes) {
			t.Errorf("Init() error = %v, want ErrNoRuntimes", err)
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		r := NewRegistry(event.NewBus(), Runtime{ID: "a"}, Runtime{ID: "a"})
		if err := r.Init(""); !errors.Is(err, errors.ErrDuplicateRuntime) {
			t.Errorf("Init() error = %v, want ErrDuplicateRuntime", err)
		}
		if r.Active() != nil {
			t.Error("failed Init should leave no active runtime")
		}
	})

	t.Run("empty id", func(t *testing.T) {
		r := NewRegistry(event.NewBus(), Runtime{Name: "nameless"})
		if err := r.Init(""); !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Init() error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("twice", func(t *testing.T) {
		r := NewRegistry(event.NewBus(), testRuntimes()...)
		if err := r.Init(""); err != nil {
			t.Fatal(err)
		}
		if err := r.Init(""); err == nil {
			t.Error("second Init should fail")
		}
	})
}

func TestRegistry_GetAndValues(t *testing.T) {
	r := NewRegistry(nil, testRuntimes()...)
	if err := r.Init(""); err != nil {
		t.Fatal(err)
	}

	rt, ok := r.Get("b")
	if !ok || rt.Template != "<B/>" {
		t.Errorf("Get(b) = %+v, %v", rt, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) should report not found")
	}

	var ids []string
	for _, rt := range r.Values() {
		ids = append(ids, rt.ID)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, ids); diff != "" {
		t.Errorf("Values() order mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_SetActive(t *testing.T) {
	bus := event.NewBus()
	r := NewRegistry(bus, testRuntimes()...)
	if err := r.Init(""); err != nil {
		t.Fatal(err)
	}
	changes := recordRuntimeChanges(bus)

	b, _ := r.Get("b")
	if err := r.SetActive(b); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	if r.Active() != b {
		t.Errorf("Active() = %v, want b", r.Active().ID)
	}

	// Idempotent: same runtime again still publishes, previous == current.
	if err := r.SetActive(b); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	want := []struct{ prev, cur string }{{"a", "b"}, {"b", "b"}}
	if len(*changes) != len(want) {
		t.Fatalf("got %d events, want %d", len(*changes), len(want))
	}
	for i, w := range want {
		c := (*changes)[i]
		if c.PreviousID != w.prev || c.CurrentID != w.cur {
			t.Errorf("event %d = %s->%s, want %s->%s", i, c.PreviousID, c.CurrentID, w.prev, w.cur)
		}
	}
	if (*changes)[1].Changed() {
		t.Error("re-setting the active runtime should not report a change")
	}
}

func TestRegistry_SetActiveUnknown(t *testing.T) {
	bus := event.NewBus()
	r := NewRegistry(bus, testRuntimes()...)
	if err := r.Init(""); err != nil {
		t.Fatal(err)
	}
	changes := recordRuntimeChanges(bus)

	err := r.SetActive(&Runtime{ID: "amp4foo"})
	if !errors.Is(err, errors.ErrUnknownRuntime) {
		t.Errorf("SetActive(unknown) error = %v, want ErrUnknownRuntime", err)
	}
	if err := r.SetActive(nil); !errors.Is(err, errors.ErrUnknownRuntime) {
		t.Errorf("SetActive(nil) error = %v, want ErrUnknownRuntime", err)
	}
	if r.Active().ID != "a" {
		t.Errorf("active runtime changed to %q", r.Active().ID)
	}
	if len(*changes) != 0 {
		t.Errorf("no event should be published, got %d", len(*changes))
	}
}

func TestRegistry_SetActiveBeforeInit(t *testing.T) {
	r := NewRegistry(nil, testRuntimes()...)
	if err := r.SetActive(&Runtime{ID: "a"}); !errors.Is(err, errors.ErrRegistryNotInitialized) {
		t.Errorf("SetActive() error = %v, want ErrRegistryNotInitialized", err)
	}
}

func TestRegistry_HandlerMayReadRegistry(t *testing.T) {
	bus := event.NewBus()
	r := NewRegistry(bus, testRuntimes()...)

	var seen string
	bus.Subscribe(event.TopicRuntimeChanged, func(e event.Event) {
		seen = r.Active().ID
	})

	if err := r.Init("c"); err != nil {
		t.Fatal(err)
	}
	if seen != "c" {
		t.Errorf("handler saw active %q, want c", seen)
	}
}

func TestRegistry_Next(t *testing.T) {
	r := NewRegistry(nil, testRuntimes()...)
	if r.Next() != nil {
		t.Error("Next() before Init should be nil")
	}
	if err := r.Init("c"); err != nil {
		t.Fatal(err)
	}
	if got := r.Next().ID; got != "a" {
		t.Errorf("Next() = %q, want wrap-around to a", got)
	}
}

func TestDefaults(t *testing.T) {
	defaults := Defaults()
	r := NewRegistry(nil, defaults...)
	if err := r.Init(""); err != nil {
		t.Fatalf("Init(Defaults()) error = %v", err)
	}
	if r.Active().ID != IDWebsites {
		t.Errorf("default active = %q, want %q", r.Active().ID, IDWebsites)
	}
	for _, rt := range defaults {
		if rt.Template == "" || rt.Profile == "" || len(rt.Markers) == 0 {
			t.Errorf("runtime %q is incomplete: %+v", rt.ID, rt)
		}
	}
}
