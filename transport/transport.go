// Package transport implements the broadcast interface a node's
// TurnManager depends on: two best-effort, unordered, duplicate- and
// self-delivery-tolerant topics, `messages` and `blocks`.
package transport

import (
	"context"

	"github.com/pot-protocol/pot/block"
	"github.com/pot-protocol/pot/message"
)

const (
	// TopicMessages carries newly authored chat Messages.
	TopicMessages = "messages"
	// TopicBlocks carries newly produced Blocks.
	TopicBlocks = "blocks"
)

// Transport is the narrow broadcast contract turn.Manager depends on. It
// makes no delivery-order, no-duplicate, or ack guarantees; callers must
// already be idempotent on ingest (pool.Add, chain.AddBlock both are).
// Implementations MUST deliver a publisher's own messages/blocks back to
// itself.
type Transport interface {
	// PublishMessage broadcasts msg on the messages topic.
	PublishMessage(ctx context.Context, msg message.Message) error
	// PublishBlock broadcasts blk on the blocks topic.
	PublishBlock(ctx context.Context, blk block.Block) error
	// Messages returns the channel inbound messages are delivered on.
	Messages() <-chan message.Message
	// Blocks returns the channel inbound blocks are delivered on.
	Blocks() <-chan block.Block
	// Close releases transport resources and stops inbound delivery.
	// Memory closes its inbound channels; Gossip leaves them open.
	Close() error
}
