package netapi

import (
	"context"

	"github.com/robotalks/netapi/pkg/errno"
	"github.com/robotalks/netapi/pkg/pktbuf"
)

func ackResult(ack *Acknowledge, err error) (int, error) {
	if err != nil {
		return 0, err
	}
	if ack.Result < 0 {
		return 0, errno.FromResult(ack.Result)
	}
	return ack.Result, nil
}

// Send asks target to transmit pkt to dest. It returns the number of bytes
// sent.
func Send(ctx context.Context, caller *Task, target PID, dest []byte, pkt *pktbuf.Packet) (int, error) {
	return ackResult(caller.Call(ctx, target, &DataRequest{Op: KindSend, Dest: dest, Packet: pkt}))
}

// Receive hands data to target. It returns the number of bytes consumed.
func Receive(ctx context.Context, caller *Task, target PID, src, dest, data []byte) (int, error) {
	return ackResult(caller.Call(ctx, target, &DataRequest{Op: KindReceive, Src: src, Dest: dest, Data: data}))
}

// GetOption reads param into buf and returns the value length.
func GetOption(ctx context.Context, caller *Task, target PID, param uint16, buf []byte) (int, error) {
	return ackResult(caller.Call(ctx, target, &OptionRequest{Op: KindGetOption, Param: param, Data: buf}))
}

// SetOption writes param.
func SetOption(ctx context.Context, caller *Task, target PID, param uint16, value []byte) error {
	_, err := ackResult(caller.Call(ctx, target, &OptionRequest{Op: KindSetOption, Param: param, Data: value}))
	return err
}

// Register adds recipient to target's registry.
func Register(ctx context.Context, caller *Task, target, recipient PID, demux uint32) error {
	_, err := ackResult(caller.Call(ctx, target, &RegRequest{Op: KindRegister, Recipient: recipient, Demux: demux}))
	return err
}

// Unregister removes recipient from target's registry.
func Unregister(ctx context.Context, caller *Task, target, recipient PID, demux uint32) error {
	_, err := ackResult(caller.Call(ctx, target, &RegRequest{Op: KindUnregister, Recipient: recipient, Demux: demux}))
	return err
}

// Recipients fills out with target's registrations and returns the count.
func Recipients(ctx context.Context, caller *Task, target PID, out []Recipient) (int, error) {
	return ackResult(caller.Call(ctx, target, &RecipientsRequest{Out: out}))
}
