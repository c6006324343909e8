// Package chain implements the append-only, hash-linked sequence of
// committed blocks every node maintains locally.
package chain

import (
	"fmt"
	"sync"

	"github.com/pot-protocol/pot/block"
)

// Chain is an append-only sequence of blocks, stored genesis first with
// the head at the end. A Chain always
// holds at least the genesis block at index 0. All methods are safe for
// concurrent use; callers outside turn.Manager's single-actor loop (e.g.
// node.Node.GetState) rely on this.
type Chain struct {
	mu     sync.RWMutex
	blocks []*block.Block // chronological order, index 0 is genesis
}

// New creates a Chain seeded with a fresh genesis block.
func New() *Chain {
	return &Chain{blocks: []*block.Block{block.NewGenesisBlock()}}
}

// AddBlock appends b after validating it chains from the current head.
// Returns an error without mutating the chain if validation fails.
func (c *Chain) AddBlock(b *block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	head := c.blocks[len(c.blocks)-1]
	if !b.Valid(head) {
		return fmt.Errorf("chain: block %d does not chain from head %d", b.Index, head.Index)
	}
	c.blocks = append(c.blocks, b)
	return nil
}

// Latest returns the current head block.
func (c *Chain) Latest() *block.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[len(c.blocks)-1]
}

// Length returns the number of blocks in the chain, including genesis.
func (c *Chain) Length() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// Chronological returns a defensive copy of the full chain, genesis first.
func (c *Chain) Chronological() []*block.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*block.Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// GetByIndex returns the block at the given index, or nil if out of range.
func (c *Chain) GetByIndex(index int64) *block.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index < 0 || index >= int64(len(c.blocks)) {
		return nil
	}
	return c.blocks[index]
}

// LastN returns up to the last n blocks, head last. If n exceeds the
// chain's length, the whole chain (minus nothing) is returned.
func (c *Chain) LastN(n int) []*block.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	start := len(c.blocks) - n
	if start < 0 {
		start = 0
	}
	out := make([]*block.Block, len(c.blocks)-start)
	copy(out, c.blocks[start:])
	return out
}

// BlocksInTimeRange returns every block with fromMs <= Timestamp <= toMs.
func (c *Chain) BlocksInTimeRange(fromMs, toMs int64) []*block.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*block.Block
	for _, b := range c.blocks {
		if b.Timestamp >= fromMs && b.Timestamp <= toMs {
			out = append(out, b)
		}
	}
	return out
}

// BlocksFromPreviousTurn returns the chat_message and lost_message_recovery
// blocks committed during the previous leader's turn, used by
// turn.Manager's recovery scan. The window is anchored on the chain's own
// head timestamp rather than wall-clock time: [latest().Timestamp-turnDurationMs,
// latest().Timestamp].
func (c *Chain) BlocksFromPreviousTurn(turnDurationMs int64) []*block.Block {
	c.mu.RLock()
	until := c.blocks[len(c.blocks)-1].Timestamp
	c.mu.RUnlock()
	since := until - turnDurationMs

	all := c.BlocksInTimeRange(since, until)
	out := make([]*block.Block, 0, len(all))
	for _, b := range all {
		if b.Type == block.TypeChatMessage || b.Type == block.TypeLostMessageRecovery {
			out = append(out, b)
		}
	}
	return out
}

// ExtractMessageIDs collects every message ID committed across the given
// blocks, covering both chat_message and lost_message_recovery variants.
func ExtractMessageIDs(blocks []*block.Block) []string {
	var ids []string
	for _, b := range blocks {
		if id, ok := b.MessageID(); ok {
			ids = append(ids, id)
		}
		ids = append(ids, b.RecoveredMessageIDs()...)
	}
	return ids
}

// Valid walks the full chain from genesis, checking index sequencing and
// hash linkage at every step. Used by ReplaceChain and by nodes that want
// to audit a peer-supplied chain before adopting it.
func Valid(blocks []*block.Block) bool {
	if len(blocks) == 0 || blocks[0].Type != block.TypeGenesis {
		return false
	}
	for i := 1; i < len(blocks); i++ {
		if !blocks[i].Valid(blocks[i-1]) {
			return false
		}
	}
	return true
}

// ReplaceChain atomically swaps in a candidate chain that is both valid
// and strictly longer than the current one — the longest-valid-chain
// rule for chain divergence after a missed block. turn.Manager does not
// call it; chains that diverge at runtime are not reconciled.
func (c *Chain) ReplaceChain(candidate []*block.Block) error {
	if !Valid(candidate) {
		return fmt.Errorf("chain: candidate chain failed validation")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(candidate) <= len(c.blocks) {
		return fmt.Errorf("chain: candidate chain (%d) not longer than current (%d)", len(candidate), len(c.blocks))
	}
	out := make([]*block.Block, len(candidate))
	copy(out, candidate)
	c.blocks = out
	return nil
}
