package platform

import (
	"encoding/binary"
	"fmt"

	"github.com/unixpickle/picobello/simulator"
)

// A memory is one L1 scratchpad or memory tile, together
// with the router endpoint that accepts requests for it.
type memory struct {
	m      *Machine
	region Region
	data   []byte
	port   *simulator.Port
}

func (m *Machine) newMemory(node *simulator.Node, region Region, size uint64) *memory {
	mem := &memory{m: m, region: region, data: make([]byte, size)}
	mem.port = node.SinkPort(m.loop, mem.handle)
	return mem
}

// Requests carried to memory endpoints. Responses are
// delivered straight to the issuing core's port.

type dmaChunk struct {
	dst  Addr
	data []byte
}

type dmaWrite struct {
	id     string
	chunks []dmaChunk
	issuer *Cluster
}

type loadReq struct {
	addr   Addr
	issuer *Cluster
}

type storeReq struct {
	addr   Addr
	value  uint32
	issuer *Cluster
}

type amoReq struct {
	addr   Addr
	delta  uint32
	issuer *Cluster
}

type irqReq struct {
	target int
	issuer *Cluster
}

type (
	dmaDone  struct{}
	storeAck struct{}
	loadResp struct{ value uint32 }
	amoResp  struct{ old uint32 }
)

func (mem *memory) handle(d *simulator.Dispatch, msg interface{}) {
	if wrapped, ok := msg.(*simulator.Message); ok {
		msg = wrapped.Message
	}
	switch req := msg.(type) {
	case *dmaWrite:
		for _, chunk := range req.chunks {
			copy(mem.m.bytes(chunk.dst, len(chunk.data)), chunk.data)
		}
		mem.respond(d, req.issuer, &dmaDone{})
	case *loadReq:
		value := binary.LittleEndian.Uint32(mem.m.bytes(req.addr, 4))
		mem.respond(d, req.issuer, &loadResp{value: value})
	case *storeReq:
		binary.LittleEndian.PutUint32(mem.m.bytes(req.addr, 4), req.value)
		mem.respond(d, req.issuer, &storeAck{})
	case *amoReq:
		buf := mem.m.bytes(req.addr, 4)
		old := binary.LittleEndian.Uint32(buf)
		binary.LittleEndian.PutUint32(buf, old+req.delta)
		mem.respond(d, req.issuer, &amoResp{old: old})
	case *irqReq:
		mem.m.clusters[req.target].raiseInterrupt(d)
		mem.respond(d, req.issuer, &storeAck{})
	case *collectiveReq:
		mem.m.units[mem.region.Index].arrive(d, req)
	default:
		panic(fmt.Sprintf("unexpected request %T at %s", msg, mem.region))
	}
}

func (mem *memory) respond(d *simulator.Dispatch, c *Cluster, resp interface{}) {
	delay := mem.m.narrowLatency(mem.port.Node, c.core.Node)
	d.Schedule(c.core.Incoming, resp, delay)
}
