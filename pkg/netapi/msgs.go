package netapi

import (
	"github.com/robotalks/netapi/pkg/errno"
	"github.com/robotalks/netapi/pkg/pktbuf"
)

// Kind identifies a message variant.
type Kind uint8

// Message kinds.
const (
	KindCommand Kind = iota
	KindAck
	KindSend
	KindReceive
	KindGetOption
	KindSetOption
	KindRegister
	KindUnregister
	KindRecipients
	KindEvent
)

var kindNames = []string{
	"Command",
	"Ack",
	"Send",
	"Receive",
	"GetOption",
	"SetOption",
	"Register",
	"Unregister",
	"Recipients",
	"Event",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Msg is a message carried in a mailbox.
type Msg interface {
	Kind() Kind
}

// Command is a request without payload.
type Command struct {
	Op Kind
}

// Kind implements Msg.
func (m *Command) Kind() Kind { return m.Op }

// Acknowledge is the only valid reply to a request.
type Acknowledge struct {
	OrigKind Kind
	Result   int
}

// Kind implements Msg.
func (m *Acknowledge) Kind() Kind { return KindAck }

// Err converts a negative result into an error.
func (m *Acknowledge) Err() error {
	return errno.FromResult(m.Result)
}

// DataRequest moves frame data. Send carries Packet, Receive carries Data.
type DataRequest struct {
	Op     Kind
	Src    []byte
	Dest   []byte
	Packet *pktbuf.Packet
	Data   []byte
}

// Kind implements Msg.
func (m *DataRequest) Kind() Kind { return m.Op }

// OptionRequest reads or writes a device parameter. For Get, Data is the
// caller's output buffer.
type OptionRequest struct {
	Op    Kind
	Param uint16
	Data  []byte
}

// Kind implements Msg.
func (m *OptionRequest) Kind() Kind { return m.Op }

// RegRequest adds or removes a recipient.
type RegRequest struct {
	Op        Kind
	Recipient PID
	Demux     uint32
}

// Kind implements Msg.
func (m *RegRequest) Kind() Kind { return m.Op }

// Recipient is one registration as seen by a caller.
type Recipient struct {
	PID   PID
	Demux uint32
}

// RecipientsRequest enumerates registrations into Out.
type RecipientsRequest struct {
	Out []Recipient
}

// Kind implements Msg.
func (m *RecipientsRequest) Kind() Kind { return KindRecipients }

// Event is an opaque device notification. It is posted, never called.
type Event struct {
	Value uint32
}

// Kind implements Msg.
func (m *Event) Kind() Kind { return KindEvent }
