// Package wire defines the messages exchanged with processes outside the
// task table, encoded as protobuf inside a Typed envelope.
package wire

import (
	"errors"
	"fmt"

	"github.com/golang/protobuf/proto"
)

// TypeID masks
const (
	TypeIDMaskKind  uint32 = 0x80000000
	TypeIDMaskGroup uint32 = 0x7fff0000
	TypeIDMaskID    uint32 = 0x0000ffff
	TypeIDMaskReply uint32 = 0x00008000
)

// Message Kinds
const (
	TypeIDKindCommand uint32 = 0x00000000
	TypeIDKindEvent   uint32 = 0x80000000
)

// Message is a protobuf message known by its type id.
type Message interface {
	proto.Message
	TypeID() uint32
	// NewMessage creates an empty message of the same type.
	NewMessage() Message
}

// ErrUnknownType indicates unknown type id.
type ErrUnknownType struct {
	TypeID uint32
}

// Error implements error.
func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown type: %x", e.TypeID)
}

// ErrNotCommand is returned when a command is expected.
var ErrNotCommand = errors.New("message is not a command")

// Typed wraps an encoded message with type information.
type Typed struct {
	TypeId   uint32 `protobuf:"varint,1,opt,name=type_id,proto3" json:"type_id,omitempty"`
	Sequence uint32 `protobuf:"varint,2,opt,name=sequence,proto3" json:"sequence,omitempty"`
	Message  []byte `protobuf:"bytes,3,opt,name=message,proto3" json:"message,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Typed) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Typed) Reset() { *m = Typed{} }

// String implements proto.Message.
func (m *Typed) String() string { return proto.CompactTextString(m) }

// TypedFrom wraps msg into a Typed.
func TypedFrom(msg Message) (*Typed, error) {
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return &Typed{TypeId: msg.TypeID(), Message: data}, nil
}

// Decode decodes the wrapped message.
func (m *Typed) Decode() (Message, error) {
	msgType, ok := MessageTypes[m.TypeId]
	if !ok {
		return nil, &ErrUnknownType{TypeID: m.TypeId}
	}
	msg := msgType.NewMessage()
	if err := proto.Unmarshal(m.Message, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Encode encodes the Typed to bytes.
func (m *Typed) Encode() ([]byte, error) {
	return proto.Marshal(m)
}

// Kind gets message kind from type ID.
func (m *Typed) Kind() uint32 {
	return m.TypeId & TypeIDMaskKind
}

// IsCommand determines if the message is a command.
func (m *Typed) IsCommand() bool {
	return m.Kind() == TypeIDKindCommand && m.TypeId&TypeIDMaskReply == 0
}

// IsReply determines if the message replies a command.
func (m *Typed) IsReply() bool {
	return m.Kind() == TypeIDKindCommand && m.TypeId&TypeIDMaskReply != 0
}

// IsEvent determines if the message is an event.
func (m *Typed) IsEvent() bool {
	return m.Kind() == TypeIDKindEvent
}

// DecodeTyped decodes bytes into Typed.
func DecodeTyped(data []byte) (*Typed, error) {
	var typed Typed
	if err := proto.Unmarshal(data, &typed); err != nil {
		return nil, err
	}
	return &typed, nil
}

// Encode wraps msg and encodes it with seq.
func Encode(msg Message, seq uint32) ([]byte, error) {
	typed, err := TypedFrom(msg)
	if err != nil {
		return nil, err
	}
	typed.Sequence = seq
	return typed.Encode()
}
