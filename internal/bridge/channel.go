package bridge

import (
	"errors"
	"io"
	"sync"
)

// Standard errors returned by Channel operations.
var (
	// ErrCapacityExceeded indicates a single write larger than the channel's
	// fixed capacity. The caller must fragment the payload.
	ErrCapacityExceeded = errors.New("write exceeds channel capacity")

	// ErrChannelClosed indicates a write to a closed channel.
	ErrChannelClosed = errors.New("channel closed")
)

// DefaultCapacity is the channel buffer size used when none is configured.
// Protocol frames are fragmented to fit, so the value only bounds burst size.
const DefaultCapacity = 64 * 1024

// Channel is a single-producer/single-consumer bounded byte mailbox shared
// between the controller goroutine and the engine goroutine.
//
// The consumer performs a genuine parking wait: BlockingRead suspends its
// goroutine on the condition variable until the producer has written bytes.
// The producer only parks when the buffer is too full to accept a write that
// would otherwise fit; it never waits for the consumer to finish reading.
//
// A second concurrent producer or consumer is an unsupported configuration;
// ordering guarantees hold only for the SPSC discipline.
type Channel struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte // fixed backing storage, never resized
	length int    // valid bytes at the front of buf
	closed bool
}

// NewChannel creates a channel with the given fixed capacity.
// Capacities below one byte fall back to DefaultCapacity.
func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	ch := &Channel{buf: make([]byte, capacity)}
	ch.cond = sync.NewCond(&ch.mu)
	return ch
}

// Cap returns the fixed buffer capacity.
func (c *Channel) Cap() int {
	return len(c.buf)
}

// Len returns the number of buffered bytes not yet read.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.length
}

// Write copies p into the shared buffer and wakes the blocked reader.
// It fails with ErrCapacityExceeded if p alone exceeds the capacity; when p
// would fit but earlier bytes have not been drained yet, Write waits for the
// consumer to make room. Bytes are delivered in write order, exactly once.
func (c *Channel) Write(p []byte) error {
	if len(p) > len(c.buf) {
		return ErrCapacityExceeded
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for c.length+len(p) > len(c.buf) {
		if c.closed {
			return ErrChannelClosed
		}
		c.cond.Wait()
	}
	if c.closed {
		return ErrChannelClosed
	}

	copy(c.buf[c.length:], p)
	c.length += len(p)
	c.cond.Broadcast()
	return nil
}

// BlockingRead parks the calling goroutine until bytes are available, then
// takes up to max bytes from the front of the buffer. The remainder is
// shifted left so the next read continues in order. Returns io.EOF once the
// channel is closed and drained.
func (c *Channel) BlockingRead(max int) ([]byte, error) {
	if max <= 0 {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Waking with zero available bytes re-enters the wait; a spurious wakeup
	// must not return an empty read.
	for c.length == 0 {
		if c.closed {
			return nil, io.EOF
		}
		c.cond.Wait()
	}

	n := c.length
	if n > max {
		n = max
	}
	out := make([]byte, n)
	copy(out, c.buf[:n])
	copy(c.buf, c.buf[n:c.length])
	c.length -= n
	c.cond.Broadcast()
	return out, nil
}

// Close wakes all waiters. Buffered bytes remain readable; once drained,
// readers receive io.EOF and writers ErrChannelClosed.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.cond.Broadcast()
	c.mu.Unlock()
}
