// Package screen provides the screen/state provider the scheduler reads for
// allow/deny gating: a stack of named screens where only the top is current.
package screen

// Stack is a plain screen stack. Not safe for concurrent use; it lives on the
// world's single logical thread.
type Stack struct {
	names []string
}

func NewStack() *Stack {
	return &Stack{}
}

// Current returns the top screen name, or false when the stack is empty.
func (s *Stack) Current() (string, bool) {
	if len(s.names) == 0 {
		return "", false
	}
	return s.names[len(s.names)-1], true
}

// Push makes name the current screen.
func (s *Stack) Push(name string) {
	s.names = append(s.names, name)
}

// Pop removes the current screen and returns it.
func (s *Stack) Pop() (string, bool) {
	if len(s.names) == 0 {
		return "", false
	}
	top := s.names[len(s.names)-1]
	s.names = s.names[:len(s.names)-1]
	return top, true
}

// Replace swaps the current screen for name; with an empty stack it is a
// plain Push.
func (s *Stack) Replace(name string) {
	if len(s.names) == 0 {
		s.names = append(s.names, name)
		return
	}
	s.names[len(s.names)-1] = name
}

// Depth returns the number of stacked screens.
func (s *Stack) Depth() int {
	return len(s.names)
}
