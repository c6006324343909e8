package transport

import (
	"context"
	"fmt"
	"log/slog"

	pubsub "github.com/libp2p/go-libp2p-pubsub"

	"github.com/pot-protocol/pot/block"
	"github.com/pot-protocol/pot/message"
)

// Gossip is a libp2p-pubsub backed Transport: one topic per logical
// channel, joined eagerly at construction. Unlike a quorum broadcaster,
// Gossip does not wait for any acknowledgement — publish returns as soon
// as the local node has handed the payload to pubsub.
type Gossip struct {
	messagesTopic *pubsub.Topic
	blocksTopic   *pubsub.Topic
	messagesSub   *pubsub.Subscription
	blocksSub     *pubsub.Subscription

	messages chan message.Message
	blocks   chan block.Block
	cancel   context.CancelFunc

	log *slog.Logger
}

// NewGossip joins the messages and blocks topics on ps and starts
// delivering validated inbound payloads into its channels.
func NewGossip(ps *pubsub.PubSub) (*Gossip, error) {
	msgTopic, err := ps.Join(TopicMessages)
	if err != nil {
		return nil, fmt.Errorf("transport: joining %s topic: %w", TopicMessages, err)
	}
	blkTopic, err := ps.Join(TopicBlocks)
	if err != nil {
		return nil, fmt.Errorf("transport: joining %s topic: %w", TopicBlocks, err)
	}

	msgSub, err := msgTopic.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("transport: subscribing %s topic: %w", TopicMessages, err)
	}
	blkSub, err := blkTopic.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("transport: subscribing %s topic: %w", TopicBlocks, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Gossip{
		messagesTopic: msgTopic,
		blocksTopic:   blkTopic,
		messagesSub:   msgSub,
		blocksSub:     blkSub,
		messages:      make(chan message.Message, 256),
		blocks:        make(chan block.Block, 256),
		cancel:        cancel,
		log:           slog.With("module", "transport"),
	}

	go g.readMessages(ctx)
	go g.readBlocks(ctx)
	return g, nil
}

func (g *Gossip) readMessages(ctx context.Context) {
	for {
		raw, err := g.messagesSub.Next(ctx)
		if err != nil {
			return
		}
		msg, err := message.Unmarshal(raw.Data)
		if err != nil {
			g.log.WarnContext(ctx, "dropping malformed message gossip", "err", err)
			continue
		}
		select {
		case g.messages <- *msg:
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gossip) readBlocks(ctx context.Context) {
	for {
		raw, err := g.blocksSub.Next(ctx)
		if err != nil {
			return
		}
		blk, err := block.Unmarshal(raw.Data)
		if err != nil {
			g.log.WarnContext(ctx, "dropping malformed block gossip", "err", err)
			continue
		}
		select {
		case g.blocks <- *blk:
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gossip) PublishMessage(ctx context.Context, msg message.Message) error {
	data, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("transport: marshaling message: %w", err)
	}
	return g.messagesTopic.Publish(ctx, data)
}

func (g *Gossip) PublishBlock(ctx context.Context, blk block.Block) error {
	data, err := blk.Marshal()
	if err != nil {
		return fmt.Errorf("transport: marshaling block: %w", err)
	}
	return g.blocksTopic.Publish(ctx, data)
}

func (g *Gossip) Messages() <-chan message.Message { return g.messages }

func (g *Gossip) Blocks() <-chan block.Block { return g.blocks }

func (g *Gossip) Close() error {
	g.cancel()
	g.messagesSub.Cancel()
	g.blocksSub.Cancel()
	if err := g.messagesTopic.Close(); err != nil {
		return err
	}
	return g.blocksTopic.Close()
}
