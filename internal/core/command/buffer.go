// Package command implements the deferred-mutation buffer. Systems running
// mid-frame queue structural changes here instead of applying them live, so
// in-flight query results and iteration state stay valid; the world plays the
// buffer back once after all systems for the frame have run.
package command

import (
	"go.uber.org/zap"
)

// Func is one deferred structural mutation. It holds no lifetime beyond a
// single playback cycle.
type Func func() error

type queued struct {
	label string
	fn    Func
}

// Buffer is a strictly FIFO queue of deferred mutations.
type Buffer struct {
	queue []queued
	log   *zap.Logger
}

func NewBuffer(log *zap.Logger) *Buffer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Buffer{log: log}
}

// Push queues a mutation. The label only appears in playback failure logs.
func (b *Buffer) Push(label string, fn Func) {
	b.queue = append(b.queue, queued{label: label, fn: fn})
}

// Len returns the number of queued commands.
func (b *Buffer) Len() int {
	return len(b.queue)
}

// Playback executes the queue in FIFO order and clears it. A failing or
// panicking command is logged and skipped so one bad mutation cannot corrupt
// the rest of the batch. Replaying without new pushes is a no-op. Commands
// queued during playback run in the same pass, after the current batch.
func (b *Buffer) Playback() {
	for i := 0; i < len(b.queue); i++ {
		cmd := b.queue[i]
		b.run(cmd)
	}
	b.queue = b.queue[:0]
}

func (b *Buffer) run(cmd queued) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("command panicked", zap.String("command", cmd.label), zap.Any("panic", r))
		}
	}()
	if err := cmd.fn(); err != nil {
		b.log.Error("command failed", zap.String("command", cmd.label), zap.Error(err))
	}
}
