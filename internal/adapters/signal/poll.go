package signal

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/rs/zerolog/log"
)

// pollConn is the long-poll fallback transport: outbound frames queue up
// until the client collects them.
type pollConn struct {
	queue    chan core.Frame
	done     chan struct{}
	once     sync.Once
	lastSeen atomic.Int64
}

func newPollConn(buffer int) *pollConn {
	pc := &pollConn{
		queue: make(chan core.Frame, buffer),
		done:  make(chan struct{}),
	}
	pc.touch(time.Now())
	return pc
}

func (pc *pollConn) TrySend(f core.Frame) error {
	select {
	case <-pc.done:
		return core.ErrConnectionClosed
	default:
	}
	select {
	case pc.queue <- f:
		return nil
	default:
		return core.ErrBackpressure
	}
}

func (pc *pollConn) Close() {
	pc.once.Do(func() { close(pc.done) })
}

func (pc *pollConn) touch(now time.Time) { pc.lastSeen.Store(now.UnixNano()) }

func (pc *pollConn) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, pc.lastSeen.Load()))
}

// drain collects whatever is queued without blocking.
func (pc *pollConn) drain(out []json.RawMessage) []json.RawMessage {
	for {
		select {
		case f := <-pc.queue:
			out = append(out, json.RawMessage(f))
		default:
			return out
		}
	}
}

type pollSessions struct {
	mu sync.Mutex
	m  map[domain.ConnectionID]*pollConn
}

func newPollSessions() *pollSessions {
	return &pollSessions{m: make(map[domain.ConnectionID]*pollConn)}
}

func (p *pollSessions) get(sid domain.ConnectionID) (*pollConn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pc, ok := p.m[sid]
	return pc, ok
}

func (p *pollSessions) put(sid domain.ConnectionID, pc *pollConn) {
	p.mu.Lock()
	p.m[sid] = pc
	p.mu.Unlock()
}

func (p *pollSessions) take(sid domain.ConnectionID) (*pollConn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pc, ok := p.m[sid]
	delete(p.m, sid)
	return pc, ok
}

func (p *pollSessions) idle(now time.Time, limit time.Duration) []domain.ConnectionID {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.ConnectionID
	for sid, pc := range p.m {
		if pc.idleSince(now) > limit {
			out = append(out, sid)
		}
	}
	return out
}

// OpenPoll starts a long-poll session and returns its connection id.
func (ctl *SignalController) OpenPoll(ctx context.Context, token string) (domain.ConnectionID, error) {
	sid := domain.NewConnectionID()
	pc := newPollConn(ctl.opts.SendBuffer)
	// the core cancels from inside its own calls, so tear down asynchronously
	cancel := func() { go ctl.ClosePoll(sid) }
	if _, err := ctl.Orch.Connect(sid, pc, cancel); err != nil {
		return "", err
	}
	ctl.polls.put(sid, pc)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new poll session")
	ctl.handshake(ctx, sid, pc, token)
	return sid, nil
}

// ReceivePoll waits up to the poll wait for at least one frame, then
// returns everything queued. An empty batch means nothing happened.
func (ctl *SignalController) ReceivePoll(ctx context.Context, sid domain.ConnectionID) ([]json.RawMessage, error) {
	pc, ok := ctl.polls.get(sid)
	if !ok {
		return nil, core.ErrUnknownConnection
	}
	pc.touch(time.Now())
	defer func() { pc.touch(time.Now()) }()

	out := pc.drain(nil)
	if len(out) > 0 {
		return out, nil
	}
	timer := time.NewTimer(ctl.opts.PollWait)
	defer timer.Stop()
	select {
	case f := <-pc.queue:
		return pc.drain([]json.RawMessage{json.RawMessage(f)}), nil
	case <-pc.done:
		return pc.drain(nil), core.ErrConnectionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return []json.RawMessage{}, nil
	}
}

// SendPoll feeds one inbound envelope through the shared path.
func (ctl *SignalController) SendPoll(ctx context.Context, sid domain.ConnectionID, data []byte) error {
	pc, ok := ctl.polls.get(sid)
	if !ok {
		return core.ErrUnknownConnection
	}
	pc.touch(time.Now())
	ctl.ingest(ctx, sid, pc, data)
	return nil
}

func (ctl *SignalController) ClosePoll(sid domain.ConnectionID) bool {
	pc, ok := ctl.polls.take(sid)
	if !ok {
		return false
	}
	pc.Close()
	ctl.release(sid)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("poll session closed")
	return true
}

// RunPolls expires idle poll sessions until ctx is done.
func (ctl *SignalController) RunPolls(ctx context.Context) error {
	t := time.NewTicker(ctl.opts.PollIdle / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			ctl.expirePolls(now)
		}
	}
}

func (ctl *SignalController) expirePolls(now time.Time) int {
	n := 0
	for _, sid := range ctl.polls.idle(now, ctl.opts.PollIdle) {
		if ctl.ClosePoll(sid) {
			n++
		}
	}
	if n > 0 {
		log.Info().Str("module", "signal").Int("expired", n).Msg("idle poll sessions closed")
	}
	return n
}
