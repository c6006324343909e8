package transport

import (
	"context"
	"sync"

	"github.com/pot-protocol/pot/block"
	"github.com/pot-protocol/pot/message"
)

// Bus is an in-process broadcast medium shared by multiple Memory
// transports, simulating the fixed-membership pub/sub network for
// single-process tests and simulations. Bus delivers every publish to
// every registered Memory, including the publisher itself, unordered
// with respect to other topics but FIFO per topic. A publish is dropped
// for any Memory whose inbound buffer is full.
type Bus struct {
	mu    sync.Mutex
	peers []*Memory
}

// NewBus creates an empty broadcast medium.
func NewBus() *Bus {
	return &Bus{}
}

// Memory is a Bus-backed Transport. Each node in a single-process
// simulation holds its own Memory, registered on a shared Bus.
type Memory struct {
	bus      *Bus
	messages chan message.Message
	blocks   chan block.Block
}

// Join registers a new Memory transport on bus.
func (bus *Bus) Join() *Memory {
	m := &Memory{
		bus:      bus,
		messages: make(chan message.Message, 256),
		blocks:   make(chan block.Block, 256),
	}
	bus.mu.Lock()
	bus.peers = append(bus.peers, m)
	bus.mu.Unlock()
	return m
}

func (m *Memory) PublishMessage(_ context.Context, msg message.Message) error {
	m.bus.mu.Lock()
	peers := make([]*Memory, len(m.bus.peers))
	copy(peers, m.bus.peers)
	m.bus.mu.Unlock()

	for _, p := range peers {
		select {
		case p.messages <- msg:
		default:
			// slow consumer; drop rather than block the publisher, consistent
			// with the best-effort, no-ack transport contract.
		}
	}
	return nil
}

func (m *Memory) PublishBlock(_ context.Context, blk block.Block) error {
	m.bus.mu.Lock()
	peers := make([]*Memory, len(m.bus.peers))
	copy(peers, m.bus.peers)
	m.bus.mu.Unlock()

	for _, p := range peers {
		select {
		case p.blocks <- blk:
		default:
		}
	}
	return nil
}

func (m *Memory) Messages() <-chan message.Message { return m.messages }

func (m *Memory) Blocks() <-chan block.Block { return m.blocks }

func (m *Memory) Close() error {
	m.bus.mu.Lock()
	for i, p := range m.bus.peers {
		if p == m {
			m.bus.peers = append(m.bus.peers[:i], m.bus.peers[i+1:]...)
			break
		}
	}
	m.bus.mu.Unlock()
	close(m.messages)
	close(m.blocks)
	return nil
}
