package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/pkg/errors"
	"github.com/unixpickle/essentials"
)

var (
	// ErrDeadlock is returned by Run when every Goroutine is
	// polling and no timer is left to wake any of them.
	ErrDeadlock = errors.New("deadlock: all Handles are polling")

	// ErrTimeLimit is returned by Run when the next event
	// would fire after the loop's time limit.
	ErrTimeLimit = errors.New("time limit exceeded")
)

// A SinkFunc consumes events on behalf of the loop itself.
//
// Sinks run synchronously inside the loop while every
// Goroutine is polling, so they may freely mutate state
// that is otherwise only touched by those Goroutines.
// A sink must not block or use a Handle; follow-up events
// are scheduled through the Dispatch.
type SinkFunc func(d *Dispatch, msg interface{})

// An EventStream is a uni-directional channel of events
// that are passed through an EventLoop.
//
// It is only safe to use an EventStream on one EventLoop
// at once.
type EventStream struct {
	loop    *EventLoop
	pending []interface{}
	sink    SinkFunc
}

// An Event is a message received on some EventStream.
type Event struct {
	Message interface{}
	Stream  *EventStream
}

// A Timer controls the delayed delivery of an event.
// In particular, a Timer represents a single send that
// will happen in the (virtual) future.
type Timer struct {
	time  float64
	event *Event
}

// Time gets the time when the timer will be fired.
//
// If the virtual time is lower than a timer's Time(),
// then it is guaranteed that the timer has not fired.
func (t *Timer) Time() float64 {
	return t.time
}

// A Dispatch is handed to sinks so that they can react to
// an event by scheduling more events.
type Dispatch struct {
	loop *EventLoop
}

// Time gets the current virtual time.
func (d *Dispatch) Time() float64 {
	return d.loop.time
}

// Schedule creates a Timer for delivering an event.
func (d *Dispatch) Schedule(stream *EventStream, msg interface{}, delay float64) *Timer {
	if stream.loop != d.loop {
		panic("EventStream is not associated with the correct EventLoop")
	}
	return d.loop.addTimer(stream, msg, delay)
}

// A Handle is a Goroutine's mechanism for accessing an
// EventLoop. Goroutines should not share Handles.
type Handle struct {
	*EventLoop

	// These fields are empty when the Goroutine is
	// not polling on any streams.
	pollStreams []*EventStream
	pollChan    chan<- *Event
}

// Poll waits for the next event from a set of streams.
func (h *Handle) Poll(streams ...*EventStream) *Event {
	ch := make(chan *Event, 1)
	h.modifyHandles(func() {
		if h.pollStreams != nil {
			panic("Handle is shared between Goroutines")
		}
		for _, stream := range streams {
			if stream.sink != nil {
				panic("cannot poll a sink stream")
			}
			if len(stream.pending) > 0 {
				msg := stream.pending[0]
				essentials.OrderedDelete(&stream.pending, 0)
				ch <- &Event{Message: msg, Stream: stream}
				return
			}
		}
		h.pollStreams = streams
		h.pollChan = ch
	})
	return <-ch
}

// Drain discards the buffered events of a stream and
// returns how many were dropped.
func (h *Handle) Drain(stream *EventStream) int {
	var n int
	h.modify(func() {
		n = len(stream.pending)
		stream.pending = nil
	})
	return n
}

// Schedule creates a Timer for delivering an event.
func (h *Handle) Schedule(stream *EventStream, msg interface{}, delay float64) *Timer {
	if stream.loop != h.EventLoop {
		panic("EventStream is not associated with the correct EventLoop")
	}
	var timer *Timer
	h.modify(func() {
		timer = h.addTimer(stream, msg, delay)
	})
	return timer
}

// Cancel stops a timer if the timer is scheduled.
//
// If the timer is not scheduled, this has no effect.
func (h *Handle) Cancel(t *Timer) {
	h.modify(func() {
		for i, timer := range h.timers {
			if timer == t {
				essentials.UnorderedDelete(&h.timers, i)
				return
			}
		}
	})
}

// Sleep waits for a certain amount of virtual time to
// elapse.
func (h *Handle) Sleep(delay float64) {
	stream := h.Stream()
	h.Schedule(stream, nil, delay)
	h.Poll(stream)
}

// An EventLoop is a global scheduler for events in a
// simulated machine.
//
// All Goroutines which access an EventLoop should be
// started using the EventLoop.Go() method.
//
// The event loop will only run when all active Goroutines
// are polling for an event.
// This way, simulated clusters don't have to worry about
// real timing while performing computations.
type EventLoop struct {
	lock    sync.Mutex
	timers  []*Timer
	handles []*Handle

	time      float64
	timeLimit float64

	running  bool
	notifyCh chan struct{}
}

// NewEventLoop creates an event loop.
//
// The event loop's clock starts at 0.
func NewEventLoop() *EventLoop {
	return &EventLoop{notifyCh: make(chan struct{}, 1)}
}

// Stream creates a new EventStream.
func (e *EventLoop) Stream() *EventStream {
	return &EventStream{loop: e}
}

// SinkStream creates an EventStream whose events are
// consumed by f instead of by a polling Goroutine.
func (e *EventLoop) SinkStream(f SinkFunc) *EventStream {
	return &EventStream{loop: e, sink: f}
}

// SetTimeLimit makes Run fail with ErrTimeLimit once the
// virtual clock would pass limit.
// A limit of 0 disables the check.
func (e *EventLoop) SetTimeLimit(limit float64) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.timeLimit = limit
}

// Go runs a function in a Goroutine and passes it a new
// handle to the EventLoop.
func (e *EventLoop) Go(f func(h *Handle)) {
	h := &Handle{EventLoop: e}
	e.lock.Lock()
	e.handles = append(e.handles, h)
	e.lock.Unlock()
	go func() {
		f(h)
		e.modifyHandles(func() {
			for i, handle := range e.handles {
				if handle == h {
					essentials.UnorderedDelete(&e.handles, i)
					return
				}
			}
			panic("cannot free handle that does not exist")
		})
	}()
}

// Run runs the loop and blocks until all handles have
// been closed.
//
// It is not safe to run the loop from more than one
// Goroutine at once.
//
// Returns with an error wrapping ErrDeadlock or
// ErrTimeLimit if the simulation cannot finish.
func (e *EventLoop) Run() error {
	e.lock.Lock()
	if e.running {
		e.lock.Unlock()
		panic("EventLoop is already running.")
	}
	e.running = true
	e.lock.Unlock()

	defer func() {
		e.lock.Lock()
		e.running = false
		e.lock.Unlock()
	}()

	for range e.notifyCh {
		if shouldContinue, err := e.step(); !shouldContinue {
			return err
		}
	}

	panic("unreachable")
}

// MustRun is like Run, but it panics if the simulation
// cannot finish.
func (e *EventLoop) MustRun() {
	if err := e.Run(); err != nil {
		panic(err)
	}
}

// Time gets the current virtual time.
func (e *EventLoop) Time() float64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.time
}

// addTimer must be called with the lock held.
func (e *EventLoop) addTimer(stream *EventStream, msg interface{}, delay float64) *Timer {
	timer := &Timer{
		time:  e.time + delay,
		event: &Event{Message: msg, Stream: stream},
	}
	if math.IsInf(timer.time, 0) || math.IsNaN(timer.time) || delay < 0 {
		panic(fmt.Sprintf("invalid deadline: %f", timer.time))
	}
	e.timers = append(e.timers, timer)
	return timer
}

// modify calls a function f() such that f can safely
// change the loop state.
//
// This assumes that handle states are not being modified,
// meaning that no scheduling changes can occur.
// If this is not the case, use modifyHandles.
func (e *EventLoop) modify(f func()) {
	e.lock.Lock()
	defer e.lock.Unlock()
	f()
}

// modifyHandles is like modify(), but it may alter the
// loop state in such a way that scheduling changes occur.
func (e *EventLoop) modifyHandles(f func()) {
	e.lock.Lock()
	defer func() {
		e.lock.Unlock()
		select {
		case e.notifyCh <- struct{}{}:
		default:
		}
	}()
	f()
}

// step runs the next event on the loop, if possible.
//
// If the event loop can no longer run, the first return
// value is false.
// If this is due to an error, the second argument
// indicates the error.
func (e *EventLoop) step() (bool, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if len(e.handles) == 0 {
		return false, nil
	}

	for _, h := range e.handles {
		if len(h.pollStreams) == 0 {
			// Do not run the loop while a Goroutine is
			// doing work in real-time.
			return true, nil
		}
	}

	for len(e.timers) > 0 {
		// Shuffle so that two timers with the same deadline
		// don't execute in a deterministic order.
		indices := rand.Perm(len(e.timers))

		minTimerIdx := indices[0]
		for _, i := range indices[1:] {
			if e.timers[i].time < e.timers[minTimerIdx].time {
				minTimerIdx = i
			}
		}
		timer := e.timers[minTimerIdx]
		if e.timeLimit > 0 && timer.time > e.timeLimit {
			return false, errors.Wrapf(ErrTimeLimit, "next event at cycle %.0f, limit %.0f",
				timer.time, e.timeLimit)
		}

		essentials.UnorderedDelete(&e.timers, minTimerIdx)
		e.time = math.Max(e.time, timer.time)
		if e.deliver(timer.event) {
			return true, nil
		}
	}

	return false, errors.Wrapf(ErrDeadlock, "cycle %.0f, %d blocked", e.time, len(e.handles))
}

func (e *EventLoop) deliver(event *Event) bool {
	if event.Stream.sink != nil {
		event.Stream.sink(&Dispatch{loop: e}, event.Message)
		return false
	}

	// Shuffle the handles so that two receivers don't get
	// messages in a deterministic order.
	indices := rand.Perm(len(e.handles))
	for _, i := range indices {
		h := e.handles[i]
		for _, stream := range h.pollStreams {
			if stream == event.Stream {
				h.pollChan <- event
				h.pollChan = nil
				h.pollStreams = nil
				return true
			}
		}
	}
	event.Stream.pending = append(event.Stream.pending, event.Message)
	return false
}
