package simulator

import (
	"math/rand"
	"sync"

	"github.com/unixpickle/essentials"
)

// An OrderedNetwork delivers messages sent to endpoints in
// order, while allowing bounded jitter and temporarily
// disconnected nodes.
//
// It models a narrow, word-sized network where every
// request to a destination is serialized behind the ones
// before it.
type OrderedNetwork struct {
	Rate             float64
	Latency          LatencyFunc
	MaxRandomLatency float64

	lock      sync.Mutex
	nextTimes map[*Node]float64
	downNodes map[*Node]bool
	timers    map[*Node][]*Timer
}

// NewOrderedNetwork creates an OrderedNetwork moving rate
// bytes per cycle into each destination.
func NewOrderedNetwork(rate float64, latency LatencyFunc, maxRandomLatency float64) *OrderedNetwork {
	return &OrderedNetwork{
		Rate:             rate,
		Latency:          latency,
		MaxRandomLatency: maxRandomLatency,
		nextTimes:        map[*Node]float64{},
		downNodes:        map[*Node]bool{},
		timers:           map[*Node][]*Timer{},
	}
}

// Send sends the messages over the network in order.
//
// Messages to or from a down node are silently dropped.
func (o *OrderedNetwork) Send(h *Handle, msgs ...*Message) {
	o.lock.Lock()
	defer o.lock.Unlock()

	o.cleanupTimers(h)

	curTime := h.Time()

	for _, msg := range msgs {
		src := msg.Source.Node
		dest := msg.Dest.Node
		if o.downNodes[src] || o.downNodes[dest] {
			continue
		}
		delay := rand.Float64()*o.MaxRandomLatency + msg.Size/o.Rate
		if o.Latency != nil {
			delay += o.Latency(src, dest)
		}

		var timer *Timer
		if t, ok := o.nextTimes[dest]; !ok || t < curTime+delay {
			timer = h.Schedule(msg.Dest.Incoming, msg, delay)
			o.nextTimes[dest] = curTime + delay
		} else {
			// Serialize behind the previous message.
			next := t + msg.Size/o.Rate
			timer = h.Schedule(msg.Dest.Incoming, msg, next-curTime)
			o.nextTimes[dest] = next
		}
		o.timers[dest] = append(o.timers[dest], timer)
		o.timers[src] = append(o.timers[src], timer)
	}
}

// IsDown checks if a node has been disconnected.
func (o *OrderedNetwork) IsDown(node *Node) bool {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.downNodes[node]
}

// SetDown connects or disconnects a node.
//
// Disconnecting a node drops every in-flight message to
// and from it. The handle may be nil before the loop has
// started, when nothing can be in flight.
func (o *OrderedNetwork) SetDown(h *Handle, node *Node, down bool) {
	o.lock.Lock()
	defer o.lock.Unlock()

	o.downNodes[node] = down

	if !down || h == nil {
		return
	}

	delete(o.nextTimes, node)

	// Kill all active messages to and from the node.
	o.cleanupTimers(h)
	timers := o.timers[node]
	canceled := map[*Timer]bool{}
	for _, t := range timers {
		canceled[t] = true
		h.Cancel(t)
	}
	delete(o.timers, node)
	o.filterTimer(func(t *Timer) bool {
		return !canceled[t]
	})
}

func (o *OrderedNetwork) cleanupTimers(h *Handle) {
	time := h.Time()
	o.filterTimer(func(t *Timer) bool {
		return t.Time() >= time
	})
}

func (o *OrderedNetwork) filterTimer(f func(t *Timer) bool) {
	for k, timers := range o.timers {
		for i := 0; i < len(timers); i++ {
			if !f(timers[i]) {
				essentials.UnorderedDelete(&timers, i)
				i--
			}
		}
		o.timers[k] = timers
	}
}
