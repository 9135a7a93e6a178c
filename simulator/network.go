package simulator

import (
	"math/rand"
)

// A Node is an endpoint of a simulated on-chip network,
// such as a cluster's memory or a memory tile.
//
// IDs must be unique and dense within one network, since
// switchers index their connection matrices by ID.
type Node struct {
	ID   int
	Name string
}

// NewNode creates a Node with the given ID.
func NewNode(id int, name string) *Node {
	return &Node{ID: id, Name: name}
}

// Port creates a new Port connected to the Node whose
// messages are received by polling Goroutines.
func (n *Node) Port(loop *EventLoop) *Port {
	return &Port{Node: n, Incoming: loop.Stream()}
}

// SinkPort creates a Port whose messages are consumed by
// the loop through f.
func (n *Node) SinkPort(loop *EventLoop, f SinkFunc) *Port {
	return &Port{Node: n, Incoming: loop.SinkStream(f)}
}

// A Port identifies a point of communication on a Node.
// Data is sent from Ports and received on Ports.
type Port struct {
	// The Node to which the Port is attached.
	Node *Node

	// A stream of *Message objects.
	Incoming *EventStream
}

// Recv receives the next message.
func (p *Port) Recv(h *Handle) *Message {
	return h.Poll(p.Incoming).Message.(*Message)
}

// A Message is a chunk of data sent between nodes over a
// network.
type Message struct {
	Source  *Port
	Dest    *Port
	Message interface{}

	// Size is measured in bytes.
	Size float64
}

// A LatencyFunc gives the fixed delay, in cycles, a
// message pays between two nodes before any data moves.
type LatencyFunc func(src, dst *Node) float64

// ConstantLatency returns a LatencyFunc that ignores the
// endpoints.
func ConstantLatency(latency float64) LatencyFunc {
	return func(src, dst *Node) float64 {
		return latency
	}
}

// A Network represents an abstract way of communicating
// between nodes.
type Network interface {
	// Send message objects from one node to another.
	// The message will arrive on the receiving port's
	// incoming EventStream if the communication is
	// successful.
	//
	// This is a non-blocking operation.
	//
	// It is preferrable to pass multiple messages in at
	// once, if possible.
	// Otherwise, the Network may have to continually
	// re-plan the entire message delivery timeline.
	Send(h *Handle, msgs ...*Message)
}

// A RandomNetwork is a network that assigns random delays
// of up to MaxLatency cycles to every message.
type RandomNetwork struct {
	MaxLatency float64
}

// Send sends the messages with random delays.
func (r RandomNetwork) Send(h *Handle, msgs ...*Message) {
	max := r.MaxLatency
	if max == 0 {
		max = 1
	}
	for _, msg := range msgs {
		h.Schedule(msg.Dest.Incoming, msg, rand.Float64()*max)
	}
}
