// Package netapi implements the synchronous call/reply protocol between
// tasks.
//
// A task owns a bounded FIFO mailbox. Requests are delivered with Call,
// which blocks the caller until the target fills the acknowledgement slot
// carried by the request. Device notifications are delivered with Post,
// which never blocks.
//
// Calls have no built-in timeout. A target that stops serving its mailbox
// stalls its callers until their context is canceled.
package netapi

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/netapi/pkg/errno"
)

// PID identifies a task within a Table.
type PID uint16

// Undefined is the PID of no task.
const Undefined PID = 0

// DefaultMailboxSize is the mailbox capacity used by Spawn when none given.
const DefaultMailboxSize = 8

// Envelope is a message as received from a mailbox.
type Envelope struct {
	From PID
	Msg  Msg

	ack *ackSlot
}

// ackSlot is the caller-owned reply slot of one call.
type ackSlot struct {
	ch     chan Msg
	filled int32
}

// NeedsReply tells whether the sender is waiting for a reply.
func (e *Envelope) NeedsReply() bool {
	return e.ack != nil
}

// Reply fills the acknowledgement slot. Only the first reply is delivered.
func (e *Envelope) Reply(msg Msg) bool {
	if e.ack == nil || !atomic.CompareAndSwapInt32(&e.ack.filled, 0, 1) {
		return false
	}
	e.ack.ch <- msg
	return true
}

// Ack replies with an Acknowledge of result.
func (e *Envelope) Ack(result int) bool {
	return e.Reply(&Acknowledge{OrigKind: e.Msg.Kind(), Result: result})
}

// Task is an independently scheduled unit with its own mailbox.
type Task struct {
	pid      PID
	name     string
	table    *Table
	mailbox  chan Envelope
	callLock sync.Mutex
}

// PID returns the task id.
func (t *Task) PID() PID {
	return t.pid
}

// Name returns the task name.
func (t *Task) Name() string {
	return t.name
}

// Table returns the table the task belongs to.
func (t *Task) Table() *Table {
	return t.table
}

// Receive blocks until a message arrives.
func (t *Task) Receive(ctx context.Context) (Envelope, error) {
	select {
	case env := <-t.mailbox:
		return env, nil
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

// Post queues msg without waiting. It returns false when the mailbox is full.
func (t *Task) Post(msg Msg) bool {
	select {
	case t.mailbox <- Envelope{Msg: msg}:
		return true
	default:
		glog.Warningf("task %s: mailbox full, %s dropped", t.name, msg.Kind())
		return false
	}
}

// Call sends msg to target and waits for the reply. Only one call per task
// is outstanding at a time; concurrent callers on the same task queue up.
// A reply that is not an Acknowledge fails with ENOMSG.
func (t *Task) Call(ctx context.Context, target PID, msg Msg) (*Acknowledge, error) {
	t.callLock.Lock()
	defer t.callLock.Unlock()
	if target == t.pid {
		return nil, errno.EINVAL
	}
	dst := t.table.Lookup(target)
	if dst == nil {
		return nil, errno.ENODEV
	}
	ack := &ackSlot{ch: make(chan Msg, 1)}
	select {
	case dst.mailbox <- Envelope{From: t.pid, Msg: msg, ack: ack}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var reply Msg
	select {
	case reply = <-ack.ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	a, ok := reply.(*Acknowledge)
	if !ok {
		glog.Warningf("task %s: %s reply to %s from %s", t.name, reply.Kind(), msg.Kind(), dst.name)
		return nil, errno.ENOMSG
	}
	return a, nil
}

// Table keeps the live tasks of a process.
type Table struct {
	lock  sync.RWMutex
	tasks map[PID]*Task
	last  PID
}

var (
	defaultTable *Table
	defaultOnce  sync.Once
)

// DefaultTable returns the process-wide task table.
func DefaultTable() *Table {
	defaultOnce.Do(func() {
		defaultTable = NewTable()
	})
	return defaultTable
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{tasks: make(map[PID]*Task)}
}

// Spawn creates a task with a mailbox of mailboxSize entries.
func (tb *Table) Spawn(name string, mailboxSize int) *Task {
	if mailboxSize <= 0 {
		mailboxSize = DefaultMailboxSize
	}
	tb.lock.Lock()
	defer tb.lock.Unlock()
	for {
		tb.last++
		if tb.last == Undefined {
			continue
		}
		if _, ok := tb.tasks[tb.last]; !ok {
			break
		}
	}
	t := &Task{
		pid:     tb.last,
		name:    name,
		table:   tb,
		mailbox: make(chan Envelope, mailboxSize),
	}
	tb.tasks[t.pid] = t
	glog.V(2).Infof("task %s spawned as %d", name, t.pid)
	return t
}

// Lookup finds a task by PID.
func (tb *Table) Lookup(pid PID) *Task {
	tb.lock.RLock()
	defer tb.lock.RUnlock()
	return tb.tasks[pid]
}

// Remove forgets a task. Later calls to it fail with ENODEV.
func (tb *Table) Remove(pid PID) {
	tb.lock.Lock()
	delete(tb.tasks, pid)
	tb.lock.Unlock()
}
