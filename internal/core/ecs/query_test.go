package ecs

import (
	"errors"
	"slices"
	"testing"
)

func TestEntitiesMatching(t *testing.T) {
	t.Run("WithRequiresAllKinds", func(t *testing.T) {
		m := NewManager(nil)
		both := m.CreateEntity()
		m.AddComponents(both, map[Kind]any{"pos": 1, "vel": 1})
		posOnly := m.CreateEntity()
		m.AddComponent(posOnly, "pos", 1)

		got := m.EntitiesMatching(Query{With: []Kind{"pos", "vel"}}, 0)
		if want := []EntityID{both}; !slices.Equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("WithoutExcludes", func(t *testing.T) {
		m := NewManager(nil)
		plain := m.CreateEntity()
		m.AddComponent(plain, "pos", 1)
		frozen := m.CreateEntity()
		m.AddComponents(frozen, map[Kind]any{"pos": 1, "frozen": true})

		got := m.EntitiesMatching(Query{With: []Kind{"pos"}, Without: []Kind{"frozen"}}, 0)
		if want := []EntityID{plain}; !slices.Equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("OptionalNeverAffectsMatching", func(t *testing.T) {
		m := NewManager(nil)
		id := m.CreateEntity()
		m.AddComponent(id, "pos", 1)
		got := m.EntitiesMatching(Query{With: []Kind{"pos"}, Optional: []Kind{"vel"}}, 0)
		if want := []EntityID{id}; !slices.Equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("EmptyWithScansAllAlive", func(t *testing.T) {
		m := NewManager(nil)
		a := m.CreateEntity()
		b := m.CreateEntity()
		m.AddComponent(b, "frozen", true)
		got := m.EntitiesMatching(Query{Without: []Kind{"frozen"}}, 0)
		if want := []EntityID{a}; !slices.Equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("ResultsSortedAscending", func(t *testing.T) {
		m := NewManager(nil)
		for i := 0; i < 10; i++ {
			id := m.CreateEntity()
			m.AddComponent(id, "pos", i)
		}
		got := m.EntitiesMatching(Query{With: []Kind{"pos"}}, 0)
		if !slices.IsSorted(got) {
			t.Errorf("results not sorted: %v", got)
		}
	})
}

func TestChangedQueries(t *testing.T) {
	t.Run("StampAfterThresholdMatches", func(t *testing.T) {
		m := NewManager(nil)
		id := m.CreateEntity()
		m.AddComponent(id, "pos", 1)
		threshold := m.Version()

		q := Query{With: []Kind{"pos"}, Changed: []Kind{"pos"}}
		if got := m.EntitiesMatching(q, threshold); len(got) != 0 {
			t.Errorf("unchanged entity matched: %v", got)
		}

		m.MarkChanged(id, "pos")
		if got := m.EntitiesMatching(q, threshold); !slices.Equal(got, []EntityID{id}) {
			t.Errorf("changed entity missing: %v", got)
		}
	})

	t.Run("ChangedIsORAcrossKinds", func(t *testing.T) {
		m := NewManager(nil)
		id := m.CreateEntity()
		m.AddComponents(id, map[Kind]any{"pos": 1, "vel": 1})
		threshold := m.Version()
		m.MarkChanged(id, "vel")

		q := Query{With: []Kind{"pos", "vel"}, Changed: []Kind{"pos", "vel"}}
		if got := m.EntitiesMatching(q, threshold); !slices.Equal(got, []EntityID{id}) {
			t.Errorf("OR semantics broken: %v", got)
		}
	})

	t.Run("OldStampsFallOutOfWindow", func(t *testing.T) {
		m := NewManager(nil)
		id := m.CreateEntity()
		m.AddComponent(id, "pos", 1)
		m.MarkChanged(id, "pos")
		threshold := m.Version()

		q := Query{With: []Kind{"pos"}, Changed: []Kind{"pos"}}
		if got := m.EntitiesMatching(q, threshold); len(got) != 0 {
			t.Errorf("stale change still visible: %v", got)
		}
	})
}

func TestParentHasQueries(t *testing.T) {
	m := NewManager(nil)
	parent := m.CreateEntity()
	m.AddComponent(parent, "squad", 1)
	child := m.CreateEntity()
	m.AddComponent(child, "pos", 1)
	m.SetParent(child, parent)
	grandchild := m.CreateEntity()
	m.AddComponent(grandchild, "pos", 1)
	m.SetParent(grandchild, child)
	rootless := m.CreateEntity()
	m.AddComponent(rootless, "pos", 1)

	q := Query{With: []Kind{"pos"}, ParentHas: []Kind{"squad"}}

	t.Run("DirectParentOnly", func(t *testing.T) {
		got := m.EntitiesMatching(q, 0)
		if want := []EntityID{child}; !slices.Equal(got, want) {
			t.Errorf("got %v, want %v (grandchild must not match transitively)", got, want)
		}
	})

	t.Run("NoParentNeverMatches", func(t *testing.T) {
		if m.Matches(rootless, q, 0) {
			t.Error("entity without a parent matched a ParentHas query")
		}
	})
}

func TestMatches(t *testing.T) {
	m := NewManager(nil)
	id := m.CreateEntity()
	m.AddComponent(id, "pos", 1)
	q := Query{With: []Kind{"pos"}}

	if !m.Matches(id, q, 0) {
		t.Error("live matching entity reported as non-matching")
	}
	m.RemoveEntity(id, false)
	if m.Matches(id, q, 0) {
		t.Error("dead entity must never match")
	}
}

func TestSingleton(t *testing.T) {
	t.Run("ExactlyOne", func(t *testing.T) {
		m := NewManager(nil)
		id := m.CreateEntity()
		m.AddComponent(id, "camera", 1)
		got, err := m.Singleton("camera")
		if err != nil {
			t.Fatalf("Singleton: %v", err)
		}
		if got != id {
			t.Errorf("got %d, want %d", got, id)
		}
	})

	t.Run("ZeroMatchesFails", func(t *testing.T) {
		m := NewManager(nil)
		if _, err := m.Singleton("camera"); !errors.Is(err, ErrNoMatch) {
			t.Errorf("err = %v, want ErrNoMatch", err)
		}
	})

	t.Run("MultipleMatchesFails", func(t *testing.T) {
		m := NewManager(nil)
		for i := 0; i < 2; i++ {
			id := m.CreateEntity()
			m.AddComponent(id, "camera", i)
		}
		if _, err := m.Singleton("camera"); !errors.Is(err, ErrMultipleMatch) {
			t.Errorf("err = %v, want ErrMultipleMatch", err)
		}
	})
}
