// Package block implements the typed, hash-chained, signed block
// container every node appends to its local chain.
package block

import "github.com/pot-protocol/pot/message"

// Type identifies which variant of Data a Block carries.
type Type string

const (
	TypeGenesis             Type = "genesis"
	TypeChatMessage         Type = "chat_message"
	TypeLostMessageRecovery Type = "lost_message_recovery"
	TypeTurnTransition      Type = "turn_transition"
)

// Data is the tagged variant payload of a Block, aligned with its Type.
// Exactly one field is populated, matching the active Type — a
// canonical Go type standing in for what would otherwise be a
// dynamically-typed field.
type Data struct {
	Genesis    *GenesisData    `codec:"genesis,omitempty"`
	Chat       *ChatData       `codec:"chat_message,omitempty"`
	Recovery   *RecoveryData   `codec:"lost_message_recovery,omitempty"`
	Transition *TransitionData `codec:"turn_transition,omitempty"`
}

// GenesisData is the marker payload of the genesis block.
type GenesisData struct {
	Marker string `codec:"marker"`
}

// ChatData carries a single committed chat Message.
type ChatData struct {
	Message message.Message `codec:"message"`
}

// RecoveryData carries every message a new leader observed but found
// uncommitted from the previous turn window.
type RecoveryData struct {
	RecoveredMessages []message.Message `codec:"recovered_messages"`
	Note              string             `codec:"note"`
}

// TransitionData records a leader handoff. Fully defined but never
// produced by turn.Manager, which rotates leadership without a
// committed handoff record.
type TransitionData struct {
	From string `codec:"from"`
	To   string `codec:"to"`
	Note string `codec:"note"`
}
