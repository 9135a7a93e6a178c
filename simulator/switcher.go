package simulator

import (
	"math"
	"sync"
)

// A ConnMat is a connectivity matrix.
//
// Entries in the matrix indicate a transfer rate from a
// source node (row) to a destination node (column), in
// bytes per cycle.
type ConnMat struct {
	numNodes int
	rates    []float64
}

// NewConnMat creates an all-zero connection matrix.
func NewConnMat(numNodes int) *ConnMat {
	return &ConnMat{
		numNodes: numNodes,
		rates:    make([]float64, numNodes*numNodes),
	}
}

// NumNodes returns the number of nodes.
func (c *ConnMat) NumNodes() int {
	return c.numNodes
}

// Get an entry in the matrix.
func (c *ConnMat) Get(src, dst int) float64 {
	c.check(src, dst)
	return c.rates[src*c.numNodes+dst]
}

// Set an entry in the matrix.
func (c *ConnMat) Set(src, dst int, value float64) {
	c.check(src, dst)
	c.rates[src*c.numNodes+dst] = value
}

// Add adds to an entry in the matrix.
func (c *ConnMat) Add(src, dst int, value float64) {
	c.check(src, dst)
	c.rates[src*c.numNodes+dst] += value
}

// SumDest sums a column of the matrix.
func (c *ConnMat) SumDest(dst int) float64 {
	c.check(0, dst)
	var sum float64
	for i := 0; i < c.numNodes; i++ {
		sum += c.rates[i*c.numNodes+dst]
	}
	return sum
}

// SumSource sums a row of the matrix.
func (c *ConnMat) SumSource(src int) float64 {
	c.check(src, 0)
	var sum float64
	for _, x := range c.rates[src*c.numNodes : (src+1)*c.numNodes] {
		sum += x
	}
	return sum
}

// ScaleDest scales a column of the matrix.
func (c *ConnMat) ScaleDest(dst int, scale float64) {
	c.check(0, dst)
	for i := 0; i < c.numNodes; i++ {
		c.rates[i*c.numNodes+dst] *= scale
	}
}

// ScaleSource scales a row of the matrix.
func (c *ConnMat) ScaleSource(src int, scale float64) {
	c.check(src, 0)
	row := c.rates[src*c.numNodes : (src+1)*c.numNodes]
	for i := range row {
		row[i] *= scale
	}
}

func (c *ConnMat) check(src, dst int) {
	if src < 0 || dst < 0 || src >= c.numNodes || dst >= c.numNodes {
		panic("index out of bounds")
	}
}

// A Switcher is a switching algorithm that determines how
// rapidly data flows in a graph of nodes.
// One job of the Switcher is to decide how to deal with
// oversubscription.
type Switcher interface {
	// Apply the switching algorithm to compute the
	// transfer rates of every connection.
	//
	// The mat argument is passed in with 1's wherever a
	// node wants to send data to another node, and 0's
	// everywhere else.
	//
	// When the function returns, mat indicates the rate
	// of data between every pair of nodes.
	SwitchedRates(mat *ConnMat)
}

// A GreedyDropSwitcher emulates a router port where
// outgoing data is spread evenly across a node's active
// flows, and inputs to a node are throttled uniformly
// when a node is oversubscribed.
//
// This is equivalent to first normalizing the rows of a
// connection matrix, and then normalizing the columns.
type GreedyDropSwitcher struct {
	SendRates []float64
	RecvRates []float64
}

// NewGreedyDropSwitcher creates a GreedyDropSwitcher with
// uniform injection and ejection rates across all nodes.
func NewGreedyDropSwitcher(numNodes int, rate float64) *GreedyDropSwitcher {
	rates := make([]float64, numNodes)
	for i := range rates {
		rates[i] = rate
	}
	return &GreedyDropSwitcher{
		SendRates: rates,
		RecvRates: append([]float64{}, rates...),
	}
}

// NumNodes gets the number of nodes the switch expects.
func (g *GreedyDropSwitcher) NumNodes() int {
	return len(g.SendRates)
}

// SwitchedRates performs the switching algorithm.
func (g *GreedyDropSwitcher) SwitchedRates(mat *ConnMat) {
	if mat.NumNodes() != g.NumNodes() {
		panic("unexpected number of nodes")
	}

	// Split injection bandwidth evenly across flows.
	for src := 0; src < g.NumNodes(); src++ {
		numDests := mat.SumSource(src)
		if numDests > 0 {
			mat.ScaleSource(src, g.SendRates[src]/numDests)
		}
	}

	// Throttle ejection in proportion to the incoming
	// rate of each flow.
	for dst := 0; dst < g.NumNodes(); dst++ {
		incomingRate := mat.SumDest(dst)
		if incomingRate > g.RecvRates[dst] {
			mat.ScaleDest(dst, g.RecvRates[dst]/incomingRate)
		}
	}
}

// A SwitcherNetwork is a network where data is passed
// through a Switcher. Multiple transfers along the same
// edge share its bandwidth, potentially making each one
// take longer to arrive at its destination.
type SwitcherNetwork struct {
	lock sync.Mutex

	switcher Switcher
	numNodes int
	latency  LatencyFunc

	plan switchedPlan
}

// NewSwitcherNetwork creates a new SwitcherNetwork over
// nodes whose IDs are 0 through numNodes-1.
//
// The latency function adds a fixed delay to every
// message, typically derived from the number of router
// hops between the endpoints.
// The latency period does influence oversubscription,
// so one message's latency period may interfere with
// another message's transmission.
func NewSwitcherNetwork(switcher Switcher, numNodes int, latency LatencyFunc) *SwitcherNetwork {
	return &SwitcherNetwork{
		switcher: switcher,
		numNodes: numNodes,
		latency:  latency,
	}
}

// Send sends the message over the network.
//
// This may affect the speed of messages that are already
// being transmitted.
func (s *SwitcherNetwork) Send(h *Handle, msgs ...*Message) {
	s.lock.Lock()
	defer s.lock.Unlock()

	state := s.stopPlan(h)
	for _, msg := range msgs {
		state = append(state, &switchedMsg{
			msg:              msg,
			remainingLatency: s.latency(msg.Source.Node, msg.Dest.Node),
			remainingSize:    msg.Size,
		})
	}
	s.createPlan(h, state)
}

func (s *SwitcherNetwork) stopPlan(h *Handle) []*switchedMsg {
	var currentState []*switchedMsg
	now := h.Time()
	for _, step := range s.plan {
		if now >= step.endTime {
			// The timers may have fired, so we let this go.
			continue
		}
		if now >= step.startTime {
			// Interpolate in the current segment.
			elapsed := now - step.startTime
			for _, msg := range step.startState {
				currentState = append(currentState, msg.AddTime(elapsed))
			}
		}
		for _, timer := range step.timers {
			h.Cancel(timer)
		}
	}
	return currentState
}

func (s *SwitcherNetwork) computeDataRates(state []*switchedMsg) {
	mat := NewConnMat(s.numNodes)
	counts := NewConnMat(s.numNodes)
	for _, msg := range state {
		if msg.remainingSize <= 0 {
			continue
		}
		src, dst := msg.msg.Source.Node.ID, msg.msg.Dest.Node.ID
		mat.Set(src, dst, 1)
		counts.Add(src, dst, 1)
	}
	s.switcher.SwitchedRates(mat)
	for _, msg := range state {
		src, dst := msg.msg.Source.Node.ID, msg.msg.Dest.Node.ID
		if n := counts.Get(src, dst); n > 0 {
			msg.dataRate = mat.Get(src, dst) / n
		} else {
			msg.dataRate = math.Inf(1)
		}
	}
}

func (s *SwitcherNetwork) createPlan(h *Handle, state []*switchedMsg) {
	s.plan = make(switchedPlan, 0, len(state))
	startTime := h.Time()
	for len(state) > 0 {
		s.computeDataRates(state)

		nextMsgs, newState, lowestETA := messagesWithLowestETA(state)

		timers := make([]*Timer, len(nextMsgs))
		for i, msg := range nextMsgs {
			delay := startTime - h.Time() + lowestETA
			timers[i] = h.Schedule(msg.msg.Dest.Incoming, msg.msg, delay)
		}

		endTime := timers[0].Time()
		s.plan = append(s.plan, &switchedPlanSegment{
			startTime:  startTime,
			endTime:    endTime,
			timers:     timers,
			startState: state,
		})

		for i, msg := range newState {
			newState[i] = msg.AddTime(endTime - startTime)
		}
		state = newState
		startTime = endTime
	}
}

// switchedMsg encodes the state of a message that is
// being sent through the network.
type switchedMsg struct {
	msg *Message

	remainingLatency float64

	remainingSize float64
	dataRate      float64
}

// ETA gets the time until the message is sent.
func (s *switchedMsg) ETA() float64 {
	if s.remainingSize <= 0 {
		return math.Max(0, s.remainingLatency)
	}
	return math.Max(0, s.remainingLatency+s.remainingSize/s.dataRate)
}

// AddTime updates the message's state to reflect a
// certain amount of time elapsing.
func (s *switchedMsg) AddTime(t float64) *switchedMsg {
	res := *s

	if t < res.remainingLatency {
		res.remainingLatency -= t
		return &res
	}

	t -= res.remainingLatency
	res.remainingLatency = 0
	if !math.IsInf(res.dataRate, 1) {
		res.remainingSize -= res.dataRate * t
	} else {
		res.remainingSize = 0
	}

	return &res
}

// switchedPlanSegment represents a period of time during
// which the message state is not changing, aside from
// more data being sent or more latency being paid for.
//
// Each segment ends with at least one Timer, which
// notifies a node about a received message.
type switchedPlanSegment struct {
	startTime float64
	endTime   float64
	timers    []*Timer

	startState []*switchedMsg
}

// switchedPlan represents a sequence of switched state
// changes that, together, send all of the current
// messages on the network.
type switchedPlan []*switchedPlanSegment

func messagesWithLowestETA(msgs []*switchedMsg) (lowest, rest []*switchedMsg, lowestETA float64) {
	etas := make([]float64, len(msgs))
	for i, msg := range msgs {
		etas[i] = msg.ETA()
	}
	lowestETA = etas[0]
	for _, eta := range etas {
		if eta < lowestETA {
			lowestETA = eta
		}
	}

	lowest = make([]*switchedMsg, 0, 1)
	rest = make([]*switchedMsg, 0, len(msgs)-1)

	for i, msg := range msgs {
		if etas[i] == lowestETA {
			lowest = append(lowest, msg)
		} else {
			rest = append(rest, msg)
		}
	}

	return lowest, rest, lowestETA
}
