package chat

import (
	"context"
	"sync"
)

// requestSlot is the single-slot resource for cancellable requests: at most
// one is live process-wide. Acquiring cancels whatever was in flight before.
// Each acquisition gets a generation number; only the matching generation may
// release the slot or act on its completion, which keeps a superseded request
// from appending anything after a newer one took over.
type requestSlot struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

func (s *requestSlot) acquire(parent context.Context) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.gen++
	return ctx, s.gen
}

// release frees the slot if gen still owns it and reports whether it did.
func (s *requestSlot) release(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return true
}

// stop cancels the in-flight request, if any, without bumping the generation:
// the owner still gets to append its one "stopped" terminal message.
func (s *requestSlot) stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}
