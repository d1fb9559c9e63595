// Package coroutine provides per-entity cooperative routines resumed once per
// frame. Routines are plain resumable state machines with an explicit tick
// contract, no goroutines or channels, composed through combinators.
package coroutine

// Status is what a routine reports after one resume.
type Status int

const (
	// Continue means the routine yielded and wants another resume next frame.
	Continue Status = iota
	// Done means the routine finished and should be detached.
	Done
)

// Routine is one cooperative task. Tick is called at most once per frame;
// Cleanup runs when the routine is cancelled before finishing.
type Routine interface {
	Tick(dt float64) Status
	Cleanup()
}

// Func adapts a bare tick function into a Routine with no cleanup.
type Func func(dt float64) Status

func (f Func) Tick(dt float64) Status { return f(dt) }
func (f Func) Cleanup()               {}

// Do runs fn once and completes.
func Do(fn func()) Routine {
	return Func(func(float64) Status {
		fn()
		return Done
	})
}

// WaitSeconds completes once the given amount of frame time has accumulated.
func WaitSeconds(seconds float64) Routine {
	remaining := seconds
	return Func(func(dt float64) Status {
		remaining -= dt
		if remaining <= 0 {
			return Done
		}
		return Continue
	})
}

// WaitUntil completes on the first frame pred reports true.
func WaitUntil(pred func() bool) Routine {
	return Func(func(float64) Status {
		if pred() {
			return Done
		}
		return Continue
	})
}

// Sequence runs children one after another. Cancelling a sequence cleans up
// the child currently in progress; children not yet started never ran and
// are not cleaned.
func Sequence(children ...Routine) Routine {
	return &sequence{children: children}
}

type sequence struct {
	children []Routine
	index    int
}

func (s *sequence) Tick(dt float64) Status {
	for s.index < len(s.children) {
		if s.children[s.index].Tick(dt) == Continue {
			return Continue
		}
		s.index++
	}
	return Done
}

func (s *sequence) Cleanup() {
	if s.index < len(s.children) {
		s.children[s.index].Cleanup()
	}
}

// Parallel resumes every unfinished child each frame and completes when all
// have finished.
func Parallel(children ...Routine) Routine {
	return &parallel{children: children, pending: make([]bool, len(children))}
}

type parallel struct {
	children []Routine
	pending  []bool // true once the child finished
}

func (p *parallel) Tick(dt float64) Status {
	allDone := true
	for i, child := range p.children {
		if p.pending[i] {
			continue
		}
		if child.Tick(dt) == Done {
			p.pending[i] = true
		} else {
			allDone = false
		}
	}
	if allDone {
		return Done
	}
	return Continue
}

func (p *parallel) Cleanup() {
	for i, child := range p.children {
		if !p.pending[i] {
			child.Cleanup()
		}
	}
}

// Race resumes every child each frame and completes as soon as one finishes;
// the losers run their cleanup path.
func Race(children ...Routine) Routine {
	return &race{children: children}
}

type race struct {
	children []Routine
}

func (r *race) Tick(dt float64) Status {
	winner := -1
	for i, child := range r.children {
		if child.Tick(dt) == Done {
			winner = i
			break
		}
	}
	if winner < 0 {
		return Continue
	}
	for i, child := range r.children {
		if i != winner {
			child.Cleanup()
		}
	}
	return Done
}

func (r *race) Cleanup() {
	for _, child := range r.children {
		child.Cleanup()
	}
}
