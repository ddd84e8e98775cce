// Package coretest provides an in-memory SignalConnection for tests.
package coretest

import (
	"encoding/json"
	"sync"

	"github.com/dkeye/Parley/internal/core"
)

// Conn records every frame it is handed. Fail, when set, is returned by TrySend.
type Conn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	Fail   error
}

func NewConn() *Conn { return &Conn{} }

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	if c.Fail != nil {
		return c.Fail
	}
	c.frames = append(c.frames, append(core.Frame(nil), f...))
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Envelopes decodes every received frame.
func (c *Conn) Envelopes() []core.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		var env core.Envelope
		if err := json.Unmarshal(f, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

// Kinds lists the type of every received envelope, in order.
func (c *Conn) Kinds() []core.Kind {
	envs := c.Envelopes()
	out := make([]core.Kind, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Type)
	}
	return out
}

// Last returns the most recent envelope of the given kind.
func (c *Conn) Last(kind core.Kind) (core.Envelope, bool) {
	envs := c.Envelopes()
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Type == kind {
			return envs[i], true
		}
	}
	return core.Envelope{}, false
}

func (c *Conn) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}
