// Package turn implements the per-node turn-rotation state machine at
// the heart of Proof-of-Turn consensus: one leader produces blocks for a
// fixed duration, then rotation hands off to the next peer in line.
package turn

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pot-protocol/pot/block"
	"github.com/pot-protocol/pot/chain"
	"github.com/pot-protocol/pot/crypto"
	"github.com/pot-protocol/pot/message"
	"github.com/pot-protocol/pot/pool"
	"github.com/pot-protocol/pot/transport"
)

// Phase is a TurnManager's position in the rotation state machine.
type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseLeading    Phase = "leading"
	PhaseTransition Phase = "transition"
)

// RecoveryScanMode selects how far back a new leader looks for
// committed messages when it checks its observed messages at turn
// start. Both modes check the same observed window (the prior
// turn+transition). ScanPreviousTurn is cheaper but can re-recover a
// message committed before the head's turn-duration window;
// ScanFullChain avoids that at O(n) cost per turn start.
type RecoveryScanMode int

const (
	// ScanPreviousTurn checks the prior turn+transition window's observed
	// messages against blocks from the turn-duration window ending at the
	// chain head's timestamp.
	ScanPreviousTurn RecoveryScanMode = iota
	// ScanFullChain checks the prior turn+transition window's observed
	// messages against every message ever committed on the local chain.
	ScanFullChain
)

// Config carries the fixed, cluster-wide constants and bootstrap inputs
// a TurnManager needs to run.
type Config struct {
	NodeID             string
	Peers              []string
	PeerPublicKeys     map[string]crypto.PubKey
	TurnDuration       time.Duration
	TransitionDuration time.Duration
	MessageRetention   time.Duration
	CleanupInterval    time.Duration
	RecoveryScanMode   RecoveryScanMode
}

// DefaultConfig fills in the protocol's default timing constants,
// leaving NodeID, Peers and PeerPublicKeys for the caller to set.
func DefaultConfig() Config {
	return Config{
		TurnDuration:       30 * time.Second,
		TransitionDuration: 5 * time.Second,
		MessageRetention:   120 * time.Second,
		CleanupInterval:    60 * time.Second,
		RecoveryScanMode:   ScanPreviousTurn,
	}
}

type controlKind int

const (
	controlStop controlKind = iota
)

// event is the typed sum timers and control signals are folded into
// before entering the single-consumer loop. Inbound messages and blocks
// are the other two members of that sum; Run reads them directly off
// the transport's own channels in the same select rather than
// re-wrapping them here.
type event struct {
	turnTimeout       bool
	transitionTimeout bool
	control           *controlKind
}

// Manager is a node's serialized turn-rotation actor: exactly one event
// is processed to completion before the next, so handlers need no
// locking among themselves. The only lock, stateMu, lets Snapshot read
// phase and leaderIndex from other goroutines.
type Manager struct {
	cfg Config

	privKey crypto.PrivKey
	chain   *chain.Chain
	pool    *pool.Pool
	tp      transport.Transport

	// stateMu guards leaderIndex/phase against Snapshot, the one way this
	// state crosses out of the single-actor event loop.
	stateMu       sync.RWMutex
	leaderIndex   int
	phase         Phase
	turnStartTime int64

	events chan event
	done   chan struct{}
	log    *slog.Logger
}

// New builds a Manager. leaderIndex starts at 0 on every node
// independently: every node's Peers list is identical and ordered, so
// they agree on the first leader without any handshake.
func New(cfg Config, privKey crypto.PrivKey, c *chain.Chain, p *pool.Pool, tp transport.Transport) *Manager {
	return &Manager{
		cfg:     cfg,
		privKey: privKey,
		chain:   c,
		pool:    p,
		tp:      tp,
		phase:   PhaseWaiting,
		events:  make(chan event, 128),
		done:    make(chan struct{}),
		log:     slog.With("module", "turn", "node_id", cfg.NodeID),
	}
}

// Run drives the event loop until ctx is cancelled or Stop is called.
// Callers should invoke Run in its own goroutine.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.done)

	cleanupTicker := time.NewTicker(m.cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	var turnTimer, transitionTimer *time.Timer
	defer func() {
		stopTimer(turnTimer)
		stopTimer(transitionTimer)
	}()

	if m.isLeader() {
		m.startTurn(ctx)
	}
	// Every node runs the turn and transition timers, leader or not, so
	// followers advance leaderIndex on the same schedule as the leader.
	turnTimer = m.armTimer(nil, m.cfg.TurnDuration, eventTurnTimeout())

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.tp.Messages():
			m.handleInboundMessage(ctx, msg)
		case blk := <-m.tp.Blocks():
			m.handleInboundBlock(ctx, blk)
		case <-cleanupTicker.C:
			m.pool.Cleanup(m.cfg.MessageRetention)
		case ev := <-m.events:
			switch {
			case ev.control != nil && *ev.control == controlStop:
				return
			case ev.turnTimeout:
				if m.getPhase() == PhaseLeading {
					m.onTurnTimeout(ctx)
				}
				transitionTimer = m.armTimer(transitionTimer, m.cfg.TransitionDuration, eventTransitionTimeout())
			case ev.transitionTimeout:
				m.onTransitionTimeout(ctx)
				turnTimer = m.armTimer(turnTimer, m.cfg.TurnDuration, eventTurnTimeout())
			}
		}
	}
}

// Stop signals the event loop to exit and blocks until it has.
func (m *Manager) Stop() {
	stop := controlStop
	select {
	case m.events <- event{control: &stop}:
	default:
	}
	<-m.done
}

func eventTurnTimeout() event       { return event{turnTimeout: true} }
func eventTransitionTimeout() event { return event{transitionTimeout: true} }

// armTimer stops any previous timer and starts a fresh one that posts ev
// into the manager's own event queue on firing.
func (m *Manager) armTimer(prev *time.Timer, d time.Duration, ev event) *time.Timer {
	stopTimer(prev)
	return time.AfterFunc(d, func() {
		select {
		case m.events <- ev:
		default:
		}
	})
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (m *Manager) isLeader() bool {
	if len(m.cfg.Peers) == 0 {
		return false
	}
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.cfg.Peers[m.leaderIndex] == m.cfg.NodeID
}

func (m *Manager) currentLeader() string {
	if len(m.cfg.Peers) == 0 {
		return ""
	}
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.cfg.Peers[m.leaderIndex]
}

func (m *Manager) setPhase(p Phase) {
	m.stateMu.Lock()
	m.phase = p
	m.stateMu.Unlock()
}

func (m *Manager) getPhase() Phase {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.phase
}

func (m *Manager) advanceLeaderIndex() {
	m.stateMu.Lock()
	m.leaderIndex = (m.leaderIndex + 1) % len(m.cfg.Peers)
	m.stateMu.Unlock()
}

// startTurn runs the recovery scan, then records phase and
// turn_start_time for the leading phase that's about to begin.
func (m *Manager) startTurn(ctx context.Context) {
	m.recoverLostMessages(ctx)
	m.turnStartTime = time.Now().UnixMilli()
	m.setPhase(PhaseLeading)
	m.log.InfoContext(ctx, "entering leading phase", "turn_start", m.turnStartTime)
}

// onTurnTimeout drains pending pool messages into singleton blocks,
// then enters the transition phase.
func (m *Manager) onTurnTimeout(ctx context.Context) {
	m.publishPendingMessages(ctx)
	m.setPhase(PhaseTransition)
	m.log.InfoContext(ctx, "entering transition phase")
}

// onTransitionTimeout advances leaderIndex and either resumes leading
// or becomes a follower. Returns true if this node is the new leader.
func (m *Manager) onTransitionTimeout(ctx context.Context) bool {
	if len(m.cfg.Peers) == 0 {
		m.setPhase(PhaseWaiting)
		return false
	}
	m.advanceLeaderIndex()
	m.log.InfoContext(ctx, "advanced leader", "leader", m.currentLeader())

	if m.isLeader() {
		m.startTurn(ctx)
		return true
	}
	m.setPhase(PhaseWaiting)
	return false
}

// publishPendingMessages drains every currently-pending pool message,
// building and broadcasting a singleton chat_message block per message,
// in snapshot iteration order. The snapshot is the pool's full pending
// set, not just messages that arrived during this turn.
func (m *Manager) publishPendingMessages(ctx context.Context) {
	pending := m.pool.Pending()
	for _, msg := range pending {
		head := m.chain.Latest()
		blk, err := block.NewMessageBlock(head, msg, m.cfg.NodeID, m.privKey)
		if err != nil {
			m.log.ErrorContext(ctx, "building chat_message block", "err", err)
			continue
		}
		if err := m.chain.AddBlock(blk); err != nil {
			m.log.ErrorContext(ctx, "appending chat_message block", "err", err)
			continue
		}
		if err := m.tp.PublishBlock(ctx, *blk); err != nil {
			m.log.WarnContext(ctx, "broadcasting chat_message block", "err", err)
		}
		m.pool.MarkIncluded(msg.ID)
	}
}

// recoverLostMessages compares messages this node has observed against
// what the previous leader actually committed, and builds a recovery
// block for anything still missing. The committed-side window is
// anchored on the chain's own head timestamp (chain.BlocksFromPreviousTurn);
// the observed-side window is necessarily wall-clock, since the pool has
// no chain-timestamp concept of its own.
func (m *Manager) recoverLostMessages(ctx context.Context) {
	turnMs := m.cfg.TurnDuration.Milliseconds()
	transitionMs := m.cfg.TransitionDuration.Milliseconds()

	windowEnd := time.Now().UnixMilli()
	windowStart := windowEnd - turnMs - transitionMs

	var committed []string
	if m.cfg.RecoveryScanMode == ScanFullChain {
		committed = chain.ExtractMessageIDs(m.chain.Chronological())
	} else {
		prevBlocks := m.chain.BlocksFromPreviousTurn(turnMs)
		committed = chain.ExtractMessageIDs(prevBlocks)
	}

	observed := m.pool.MessagesInTimeRange(windowStart, windowEnd)
	missing := pool.FindMissing(observed, committed)
	if len(missing) == 0 {
		return
	}

	head := m.chain.Latest()
	blk, err := block.NewRecoveryBlock(head, missing, "lost message recovery", m.cfg.NodeID, m.privKey)
	if err != nil {
		m.log.ErrorContext(ctx, "building recovery block", "err", err)
		return
	}
	if err := m.chain.AddBlock(blk); err != nil {
		m.log.ErrorContext(ctx, "appending recovery block", "err", err)
		return
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return m.tp.PublishBlock(gctx, *blk)
	})
	if err := group.Wait(); err != nil {
		m.log.WarnContext(ctx, "broadcasting recovery block", "err", err)
	}

	for _, msg := range missing {
		m.pool.MarkIncluded(msg.ID)
	}
	m.log.InfoContext(ctx, "recovered lost messages", "count", len(missing))
}

// handleInboundMessage validates and pools an inbound chat message. Run
// in every phase, regardless of leadership.
func (m *Manager) handleInboundMessage(ctx context.Context, msg message.Message) {
	pub, ok := m.cfg.PeerPublicKeys[msg.AuthorID]
	if !ok {
		m.log.WarnContext(ctx, "dropping message from unknown author", "author_id", msg.AuthorID)
		return
	}
	if !msg.Verify(pub) {
		m.log.WarnContext(ctx, "dropping message with bad signature", "author_id", msg.AuthorID, "message_id", msg.ID)
		return
	}
	m.pool.Add(msg)
}

// handleInboundBlock validates and appends an inbound block. Run in
// every phase, regardless of leadership.
func (m *Manager) handleInboundBlock(ctx context.Context, blk block.Block) {
	head := m.chain.Latest()
	if !blk.Valid(head) {
		m.log.WarnContext(ctx, "dropping structurally invalid block", "index", blk.Index)
		return
	}
	if blk.Type != block.TypeGenesis {
		pub, ok := m.cfg.PeerPublicKeys[blk.AuthorID]
		if !ok || !blk.VerifySignature(pub) {
			m.log.WarnContext(ctx, "dropping block with bad signature", "author_id", blk.AuthorID, "index", blk.Index)
			return
		}
	}

	if err := m.chain.AddBlock(&blk); err != nil {
		m.log.WarnContext(ctx, "dropping block failing chain append", "err", err)
		return
	}

	switch blk.Type {
	case block.TypeChatMessage:
		if id, ok := blk.MessageID(); ok {
			m.pool.MarkIncluded(id)
		}
	case block.TypeLostMessageRecovery:
		for _, id := range blk.RecoveredMessageIDs() {
			m.pool.MarkIncluded(id)
		}
	}
}

// State is the snapshot returned by node.Node.GetState.
type State struct {
	NodeID           string
	Phase            Phase
	CurrentLeader    string
	BlockchainLength int
	PendingMessages  int
}

// Snapshot returns the manager's current externally-visible state. Safe
// to call concurrently with Run: phase and leaderIndex are read through
// stateMu, and chain/pool are already safe for concurrent access.
func (m *Manager) Snapshot() State {
	return State{
		NodeID:           m.cfg.NodeID,
		Phase:            m.getPhase(),
		CurrentLeader:    m.currentLeader(),
		BlockchainLength: m.chain.Length(),
		PendingMessages:  m.pool.PendingCount(),
	}
}
