package world

import (
	"errors"
	"testing"

	"github.com/veldt-engine/veldt/internal/core/coroutine"
	"github.com/veldt-engine/veldt/internal/core/ecs"
)

type pingEvent struct{ N int }

func TestAttachDetach(t *testing.T) {
	t.Run("EmptyLabelFails", func(t *testing.T) {
		w := New(Options{})
		if err := w.AttachSystem(System{}); !errors.Is(err, ErrEmptyLabel) {
			t.Errorf("err = %v, want ErrEmptyLabel", err)
		}
	})

	t.Run("DuplicateLabelFails", func(t *testing.T) {
		w := New(Options{})
		w.AttachSystem(System{Label: "sys"})
		if err := w.AttachSystem(System{Label: "sys"}); !errors.Is(err, ErrDuplicateSystem) {
			t.Errorf("err = %v, want ErrDuplicateSystem", err)
		}
	})

	t.Run("InitializeAndDetachCallbacks", func(t *testing.T) {
		w := New(Options{})
		var inits, detaches int
		w.AttachSystem(System{
			Label:      "sys",
			Initialize: func(*World) { inits++ },
			Detach:     func(*World) { detaches++ },
		})
		if inits != 1 {
			t.Errorf("inits = %d, want 1", inits)
		}
		if err := w.DetachSystem("sys"); err != nil {
			t.Fatalf("DetachSystem: %v", err)
		}
		if detaches != 1 {
			t.Errorf("detaches = %d, want 1", detaches)
		}
		if w.HasSystem("sys") {
			t.Error("system should be gone")
		}
	})

	t.Run("DetachUnknownFails", func(t *testing.T) {
		w := New(Options{})
		if err := w.DetachSystem("ghost"); !errors.Is(err, ErrUnknownSystem) {
			t.Errorf("err = %v, want ErrUnknownSystem", err)
		}
	})

	t.Run("DetachedSystemStopsRunning", func(t *testing.T) {
		w := New(Options{})
		var runs int
		w.AttachSystem(System{
			Label:   "sys",
			Process: func(*World, float64, Results) { runs++ },
		})
		w.Update(0.1)
		w.DetachSystem("sys")
		w.Update(0.1)
		if runs != 1 {
			t.Errorf("runs = %d, want 1", runs)
		}
	})
}

func TestSystemEvents(t *testing.T) {
	t.Run("HandlerReceivesPublishedEvents", func(t *testing.T) {
		w := New(Options{})
		var got []int
		w.AttachSystem(System{
			Label: "listener",
			Events: []EventHandler{
				OnEvent(func(ev pingEvent, _ *World) { got = append(got, ev.N) }),
			},
		})
		// Publish through the bus the way another system would.
		w.Bus.PublishAny(pingEvent{N: 5})
		if len(got) != 1 || got[0] != 5 {
			t.Errorf("got %v, want [5]", got)
		}
	})

	t.Run("DetachUnsubscribesHandlers", func(t *testing.T) {
		w := New(Options{})
		var calls int
		w.AttachSystem(System{
			Label: "listener",
			Events: []EventHandler{
				OnEvent(func(pingEvent, *World) { calls++ }),
			},
		})
		w.DetachSystem("listener")
		w.Bus.PublishAny(pingEvent{})
		if calls != 0 {
			t.Errorf("calls = %d after detach, want 0", calls)
		}
	})
}

func TestGroups(t *testing.T) {
	w := New(Options{})
	if !w.GroupEnabled("sim") {
		t.Error("groups should be enabled by default")
	}
	w.DisableGroup("sim")
	if w.GroupEnabled("sim") {
		t.Error("DisableGroup should take effect")
	}
	w.EnableGroup("sim")
	if !w.GroupEnabled("sim") {
		t.Error("EnableGroup should take effect")
	}
}

func TestSpawn(t *testing.T) {
	w := New(Options{})
	var mutations int
	w.Entities.OnAfterEntityMutated(func(ecs.EntityID) { mutations++ })

	id := w.Spawn(map[ecs.Kind]any{"pos": 1, "vel": 2})
	if !w.Entities.Alive(id) {
		t.Fatal("spawned entity should be alive")
	}
	if !w.Entities.HasComponent(id, "pos") || !w.Entities.HasComponent(id, "vel") {
		t.Error("spawned components missing")
	}
	if mutations != 1 {
		t.Errorf("mutated hook fired %d times, want 1 (one batch)", mutations)
	}
	if w.Entities.Stamp(id, "pos") == 0 {
		t.Error("initial components should be auto-marked changed")
	}
}

func TestDeferredCommands(t *testing.T) {
	t.Run("InvisibleUntilPlayback", func(t *testing.T) {
		w := New(Options{})
		target := w.Spawn(nil)
		var duringFrame bool
		w.AttachSystem(System{
			Label: "deferrer",
			Phase: PhaseUpdate,
			Process: func(w *World, _ float64, _ Results) {
				w.DeferAddComponent(target, "tag", 1)
				duringFrame = w.Entities.HasComponent(target, "tag")
			},
		})
		w.Update(0.1)
		if duringFrame {
			t.Error("deferred mutation applied mid-frame")
		}
		if !w.Entities.HasComponent(target, "tag") {
			t.Error("deferred mutation missing after frame end")
		}
	})

	t.Run("DeferRemoveEntity", func(t *testing.T) {
		w := New(Options{})
		id := w.Spawn(nil)
		w.DeferRemoveEntity(id, true)
		if !w.Entities.Alive(id) {
			t.Fatal("entity should still be alive before playback")
		}
		w.Update(0.1)
		if w.Entities.Alive(id) {
			t.Error("entity should be gone after playback")
		}
	})

	t.Run("DeferSetParent", func(t *testing.T) {
		w := New(Options{})
		child := w.Spawn(nil)
		parent := w.Spawn(nil)
		w.DeferSetParent(child, parent)
		w.Update(0.1)
		if p, ok := w.Entities.Parent(child); !ok || p != parent {
			t.Errorf("parent = (%d, %v), want (%d, true)", p, ok, parent)
		}
	})

	t.Run("FailingCommandLeavesRestApplied", func(t *testing.T) {
		w := New(Options{})
		dead := w.Spawn(nil)
		w.Entities.RemoveEntity(dead, false)
		live := w.Spawn(nil)

		w.DeferAddComponent(dead, "tag", 1) // fails: dead entity
		w.DeferAddComponent(live, "tag", 1)
		w.Update(0.1)
		if !w.Entities.HasComponent(live, "tag") {
			t.Error("command after a failing one did not apply")
		}
	})
}

func TestEntityRemovalCancelsCoroutines(t *testing.T) {
	w := New(Options{})
	id := w.Spawn(nil)
	other := w.Spawn(nil)

	cleaned := false
	w.Coroutines.Start(id, cleanupRoutine{onCleanup: func() { cleaned = true }})
	w.Coroutines.Start(other, cleanupRoutine{onCleanup: func() {}})

	w.Entities.RemoveEntity(id, false)
	if !cleaned {
		t.Error("destroying an entity should cancel its routines")
	}
	if w.Coroutines.Len() != 1 {
		t.Errorf("Coroutines.Len = %d, want 1", w.Coroutines.Len())
	}
}

type cleanupRoutine struct {
	onCleanup func()
}

func (cleanupRoutine) Tick(float64) coroutine.Status { return coroutine.Continue }
func (c cleanupRoutine) Cleanup()                    { c.onCleanup() }
