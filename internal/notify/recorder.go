package notify

import (
	"sync"
	"time"
)

// Sent is one notification captured by Recorder.
type Sent struct {
	Handle Handle
	Title  string
	Body   string
	At     time.Time
}

type Persistent struct {
	StopsLeft    *int
	ArrivalClock string
	Label        string
}

// Recorder keeps every call in memory. Scheduled entries are removed on Cancel.
type Recorder struct {
	mu         sync.Mutex
	Immediate  []Sent
	Scheduled  map[Handle]Sent
	Cancelled  []Handle
	Persistent []Persistent
	Dismissals int
}

func NewRecorder() *Recorder {
	return &Recorder{Scheduled: make(map[Handle]Sent)}
}

func (r *Recorder) ScheduleImmediate(title, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Immediate = append(r.Immediate, Sent{Title: title, Body: body})
}

func (r *Recorder) ScheduleAt(title, body string, at time.Time) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := NewHandle()
	r.Scheduled[h] = Sent{Handle: h, Title: title, Body: body, At: at}
	return h
}

func (r *Recorder) Cancel(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Scheduled, h)
	r.Cancelled = append(r.Cancelled, h)
}

func (r *Recorder) UpdatePersistent(stopsLeft *int, arrivalClock, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var copied *int
	if stopsLeft != nil {
		v := *stopsLeft
		copied = &v
	}
	r.Persistent = append(r.Persistent, Persistent{StopsLeft: copied, ArrivalClock: arrivalClock, Label: label})
}

func (r *Recorder) DismissPersistent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Dismissals++
}

func (r *Recorder) ImmediateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Immediate)
}

func (r *Recorder) LastPersistent() (Persistent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Persistent) == 0 {
		return Persistent{}, false
	}
	return r.Persistent[len(r.Persistent)-1], true
}

// Pending returns the scheduled notifications that were not cancelled.
func (r *Recorder) Pending() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, 0, len(r.Scheduled))
	for _, s := range r.Scheduled {
		out = append(out, s)
	}
	return out
}
