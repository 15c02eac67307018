package mailer

import (
	"context"
	"sync"
)

// Capture keeps sent messages in memory, for tests and local development
type Capture struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

// NewCapture returns an empty Capture mailer
func NewCapture() *Capture {
	return &Capture{}
}

// FailWith makes subsequent sends return err
func (c *Capture) FailWith(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *Capture) Send(_ context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

// Sent returns a copy of every delivered message
func (c *Capture) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.sent))
	copy(out, c.sent)
	return out
}

// Last returns the most recent message sent to address
func (c *Capture) Last(address string) (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.sent) - 1; i >= 0; i-- {
		if c.sent[i].To == address {
			return c.sent[i], true
		}
	}
	return Message{}, false
}
