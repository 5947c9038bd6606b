package wire

import (
	"github.com/golang/protobuf/proto"
)

// Frame is an event carrying a frame received by a device.
type Frame struct {
	Device  string `protobuf:"bytes,1,opt,name=device,proto3" json:"device,omitempty"`
	Src     []byte `protobuf:"bytes,2,opt,name=src,proto3" json:"src,omitempty"`
	Dest    []byte `protobuf:"bytes,3,opt,name=dest,proto3" json:"dest,omitempty"`
	Payload []byte `protobuf:"bytes,4,opt,name=payload,proto3" json:"payload,omitempty"`
}

// NewMessage implements Message.
func (m *Frame) NewMessage() Message { return &Frame{} }

// TypeID implements Message.
func (m *Frame) TypeID() uint32 { return FrameTypeID }

// ProtoMessage implements proto.Message.
func (m *Frame) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Frame) Reset() { *m = Frame{} }

// String implements proto.Message.
func (m *Frame) String() string { return proto.CompactTextString(m) }

// Transmit asks the device to send a frame. Headers are prepended to the
// payload head first.
type Transmit struct {
	Dest    []byte   `protobuf:"bytes,1,opt,name=dest,proto3" json:"dest,omitempty"`
	Headers [][]byte `protobuf:"bytes,2,rep,name=headers,proto3" json:"headers,omitempty"`
	Payload []byte   `protobuf:"bytes,3,opt,name=payload,proto3" json:"payload,omitempty"`
}

// NewMessage implements Message.
func (m *Transmit) NewMessage() Message { return &Transmit{} }

// TypeID implements Message.
func (m *Transmit) TypeID() uint32 { return TransmitTypeID }

// ProtoMessage implements proto.Message.
func (m *Transmit) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Transmit) Reset() { *m = Transmit{} }

// String implements proto.Message.
func (m *Transmit) String() string { return proto.CompactTextString(m) }

// TransmitAck replies Transmit with the number of bytes sent, or a negative
// error code.
type TransmitAck struct {
	Result int32 `protobuf:"zigzag32,1,opt,name=result,proto3" json:"result,omitempty"`
}

// NewMessage implements Message.
func (m *TransmitAck) NewMessage() Message { return &TransmitAck{} }

// TypeID implements Message.
func (m *TransmitAck) TypeID() uint32 { return TransmitAckTypeID }

// ProtoMessage implements proto.Message.
func (m *TransmitAck) ProtoMessage() {}

// Reset implements proto.Message.
func (m *TransmitAck) Reset() { *m = TransmitAck{} }

// String implements proto.Message.
func (m *TransmitAck) String() string { return proto.CompactTextString(m) }

// CommandErr replies a command which could not be decoded or executed.
type CommandErr struct {
	Message string `protobuf:"bytes,1,opt,name=message,proto3" json:"message,omitempty"`
}

// NewCommandErr creates a CommandErr from an error.
func NewCommandErr(err error) *CommandErr {
	return &CommandErr{Message: err.Error()}
}

// NewMessage implements Message.
func (m *CommandErr) NewMessage() Message { return &CommandErr{} }

// TypeID implements Message.
func (m *CommandErr) TypeID() uint32 { return CommandErrTypeID }

// ProtoMessage implements proto.Message.
func (m *CommandErr) ProtoMessage() {}

// Reset implements proto.Message.
func (m *CommandErr) Reset() { *m = CommandErr{} }

// String implements proto.Message.
func (m *CommandErr) String() string { return proto.CompactTextString(m) }

// Error implements error.
func (m *CommandErr) Error() string { return m.Message }

// TypeID Groups
const (
	GroupCommand uint32 = 0x00000000
	GroupLink    uint32 = 0x00010000
)

// TypeIDs
const (
	CommandErrTypeID  uint32 = GroupCommand | TypeIDMaskReply | 0x0001
	TransmitTypeID    uint32 = GroupLink | 0x0001
	TransmitAckTypeID uint32 = TransmitTypeID | TypeIDMaskReply
	FrameTypeID       uint32 = GroupLink | TypeIDKindEvent | 0x0002
)

// MessageTypes are predefined mapping of type ID to messages.
var MessageTypes = map[uint32]Message{
	CommandErrTypeID:  (*CommandErr)(nil),
	TransmitTypeID:    (*Transmit)(nil),
	TransmitAckTypeID: (*TransmitAck)(nil),
	FrameTypeID:       (*Frame)(nil),
}
