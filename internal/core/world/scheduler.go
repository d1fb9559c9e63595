package world

import (
	"slices"
	"sort"
)

// Update runs one frame: every phase in order, coroutines resumed once at the
// start of the update phase, and after all systems have run the change
// threshold advances and the command buffer plays back exactly once. Queries
// are evaluated live, so later systems in the same frame observe structural
// changes made by earlier ones, except those deferred through the buffer.
func (w *World) Update(dt float64) {
	threshold := w.prevVersion
	for phase := PhasePreUpdate; phase <= PhaseRender; phase++ {
		if phase == PhaseFixedUpdate {
			w.runFixed(dt, threshold)
			continue
		}
		if phase == PhaseUpdate {
			w.Coroutines.Tick(dt)
		}
		w.runPhase(phase, dt, threshold)
	}
	// Advance the threshold before playback so mutations stamped during
	// playback stay visible to next frame's Changed queries.
	w.prevVersion = w.Entities.Version()
	w.Commands.Playback()
	w.frame++
}

// runFixed drives the FixedUpdate phase off the accumulator: zero or more
// steps of the fixed timestep, decoupled from the variable frame delta. The
// step count is clamped and leftover time beyond one step is dropped so a
// stall cannot snowball into an ever-growing debt.
func (w *World) runFixed(dt float64, threshold uint64) {
	w.accumulator += dt
	steps := 0
	for w.accumulator >= w.fixedStep && steps < w.maxFixedSteps {
		w.runPhase(PhaseFixedUpdate, w.fixedStep, threshold)
		w.accumulator -= w.fixedStep
		steps++
	}
	if steps == w.maxFixedSteps && w.accumulator > w.fixedStep {
		w.accumulator = w.fixedStep
	}
}

func (w *World) runPhase(phase Phase, dt float64, threshold uint64) {
	for _, a := range w.phaseSystems(phase) {
		if !w.labelsHas(a) {
			continue // detached by an earlier system this phase
		}
		sys := a.sys
		if !w.runnable(sys) {
			continue
		}
		var results Results
		if len(sys.Queries) > 0 {
			results = make(Results, len(sys.Queries))
			for name, q := range sys.Queries {
				results[name] = w.Entities.EntitiesMatching(q, threshold)
			}
		}
		if sys.Process != nil {
			sys.Process(w, dt, results)
		}
	}
}

// phaseSystems returns the phase's systems in execution order: priority
// descending, ties broken by attach order.
func (w *World) phaseSystems(phase Phase) []*attached {
	var out []*attached
	for _, a := range w.systems {
		if a.sys.Phase == phase {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].sys.Priority != out[j].sys.Priority {
			return out[i].sys.Priority > out[j].sys.Priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}

func (w *World) labelsHas(a *attached) bool {
	cur, ok := w.labels[a.sys.Label]
	return ok && cur == a
}

// runnable applies the frame gates: group toggles, screen allow/deny, and
// required-asset readiness.
func (w *World) runnable(sys System) bool {
	for _, g := range sys.Groups {
		if _, disabled := w.disabledGroups[g]; disabled {
			return false
		}
	}
	if len(sys.AllowScreens) > 0 || len(sys.DenyScreens) > 0 {
		var current string
		var ok bool
		if w.screens != nil {
			current, ok = w.screens.Current()
		}
		if len(sys.AllowScreens) > 0 && (!ok || !slices.Contains(sys.AllowScreens, current)) {
			return false
		}
		if ok && slices.Contains(sys.DenyScreens, current) {
			return false
		}
	}
	for _, key := range sys.RequiredAssets {
		if w.assets == nil || !w.assets.IsLoaded(key) {
			return false
		}
	}
	return true
}
