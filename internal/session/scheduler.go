package session

import (
	"sync"
	"time"
)

// Handle identifies a timer registered with a Scheduler.
type Handle uint64

// Scheduler is a registry of cancellable timers. Callbacks never overlap: each
// runs while holding one lock, like callbacks on a single event loop. Once a
// timer is cancelled, or the scheduler closed, its callback never starts again.
type Scheduler struct {
	run sync.Mutex

	mu     sync.Mutex
	timers map[Handle]func()
	next   Handle
	closed bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[Handle]func())}
}

// Every runs fn every d until cancelled. It returns 0 after Close.
func (s *Scheduler) Every(d time.Duration, fn func()) Handle {
	stop := make(chan struct{})
	h, ok := s.register(func() { close(stop) })
	if !ok {
		return 0
	}

	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.fire(h, false, fn)
			}
		}
	}()
	return h
}

// After runs fn once after d unless cancelled first. It returns 0 after Close.
func (s *Scheduler) After(d time.Duration, fn func()) Handle {
	var timer *time.Timer
	var timerMu sync.Mutex

	h, ok := s.register(func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	})
	if !ok {
		return 0
	}

	timerMu.Lock()
	timer = time.AfterFunc(d, func() { s.fire(h, true, fn) })
	timerMu.Unlock()
	return h
}

// Do runs fn serialized with timer callbacks. It reports false after Close.
func (s *Scheduler) Do(fn func()) bool {
	s.run.Lock()
	defer s.run.Unlock()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}
	fn()
	return true
}

func (s *Scheduler) Cancel(h Handle) {
	s.mu.Lock()
	stop, ok := s.timers[h]
	delete(s.timers, h)
	s.mu.Unlock()

	if ok {
		stop()
	}
}

// Close cancels every timer. It is safe to call more than once.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	timers := s.timers
	s.timers = make(map[Handle]func())
	s.mu.Unlock()

	for _, stop := range timers {
		stop()
	}
}

// Active returns the number of registered timers.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) register(stop func()) (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, false
	}
	s.next++
	s.timers[s.next] = stop
	return s.next, true
}

func (s *Scheduler) fire(h Handle, once bool, fn func()) {
	s.run.Lock()
	defer s.run.Unlock()

	s.mu.Lock()
	_, live := s.timers[h]
	if live && once {
		delete(s.timers, h)
	}
	s.mu.Unlock()

	if live {
		fn()
	}
}
