// Package registry tracks all currently-connected players and their
// in-memory state for the game backend.
package registry

import (
	"fmt"
	"sync"
)

// Outbound routes encoded frames to a Go channel, bridging the registry
// to the websocket write loop of the owning session. Other sessions push
// relayed messages (e.g. challenges) through it without holding a direct
// reference to the target session.
type Outbound struct {
	id     string
	frames chan []byte
	mu     sync.Mutex
	closed bool
}

// NewOutbound creates an Outbound channel for the given session id.
//
// Precondition: id must be non-empty.
// Postcondition: Returns an Outbound with an open frames channel.
func NewOutbound(id string, bufferSize int) *Outbound {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Outbound{
		id:     id,
		frames: make(chan []byte, bufferSize),
	}
}

// ID returns the owning session id.
func (o *Outbound) ID() string {
	return o.id
}

// Push enqueues an encoded frame for delivery.
//
// Postcondition: The frame is enqueued, or an error if the channel is
// closed or the buffer is full. Push never blocks.
func (o *Outbound) Push(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbound %s is closed", o.id)
	}
	select {
	case o.frames <- frame:
		return nil
	default:
		return fmt.Errorf("outbound %s buffer full", o.id)
	}
}

// Frames returns the read-only frame channel. The session write loop
// drains this channel onto the websocket connection.
func (o *Outbound) Frames() <-chan []byte {
	return o.frames
}

// Close marks the channel as closed and closes it.
//
// Postcondition: The frames channel is closed. Further Push calls return
// an error. Close is idempotent.
func (o *Outbound) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.frames)
	}
	return nil
}

// IsClosed reports whether the channel has been closed.
func (o *Outbound) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
