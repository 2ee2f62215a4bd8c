package webrtc

import (
	"sync"

	pion "github.com/pion/webrtc/v4"
)

// channel adapts a pion DataChannel to DataChannel.
type channel struct {
	dc *pion.DataChannel

	// deliverMu serializes handler calls with the flush of frames that
	// arrived before a handler was installed.
	deliverMu sync.Mutex

	mu        sync.Mutex
	onMessage func([]byte)
	pending   [][]byte
	onClose   func()
	closed    bool
}

func newChannel(dc *pion.DataChannel) *channel {
	c := &channel{dc: dc}
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		c.deliver(msg.Data)
	})
	dc.OnClose(c.markClosed)
	return c
}

func (c *channel) deliver(frame []byte) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	fn := c.onMessage
	if fn == nil {
		c.pending = append(c.pending, append([]byte(nil), frame...))
	}
	c.mu.Unlock()

	if fn != nil {
		fn(frame)
	}
}

func (c *channel) Send(frame []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return ErrChannelClosed
	}
	return c.dc.Send(frame)
}

func (c *channel) OnMessage(fn func([]byte)) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	c.onMessage = fn
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, frame := range pending {
		fn(frame)
	}
}

func (c *channel) OnClose(fn func()) {
	c.mu.Lock()
	closed := c.closed
	if !closed {
		c.onClose = fn
	}
	c.mu.Unlock()

	if closed {
		fn()
	}
}

func (c *channel) markClosed() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	fn := c.onClose
	c.onClose = nil
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (c *channel) Close() error {
	err := c.dc.Close()
	c.markClosed()
	return err
}
