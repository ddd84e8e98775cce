package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Parley/internal/app/orch"
	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// TokenKey is the gin context key holding the session token, if any.
const TokenKey = "session_token"

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int
	PollIdle   time.Duration
	PollWait   time.Duration
	RateLimit  int
	RateWindow time.Duration
}

func (o *Options) defaults() {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32768
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	if o.PollIdle <= 0 {
		o.PollIdle = 60 * time.Second
	}
	if o.PollWait <= 0 {
		o.PollWait = 25 * time.Second
	}
}

// SignalController binds transports (WebSocket, long-poll) to the orchestrator.
type SignalController struct {
	Orch    *orch.Orchestrator
	opts    Options
	limiter *RateLimiter
	polls   *pollSessions
}

func NewSignalController(o *orch.Orchestrator, opts Options) *SignalController {
	opts.defaults()
	return &SignalController{
		Orch:    o,
		opts:    opts,
		limiter: NewRateLimiter(opts.RateLimit, opts.RateWindow),
		polls:   newPollSessions(),
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalController) HandleSignal(ctx context.Context, c *gin.Context) {
	if ctl.Orch.Draining() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": core.ErrClosed.Error()})
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := domain.NewConnectionID()
	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}
	ctx, cancel := context.WithCancel(ctx)
	if _, err := ctl.Orch.Connect(sid, conn, cancel); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("connection refused")
		cancel()
		conn.Close()
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	go ctl.writePump(ctx, sid, conn)
	// identity first, so no inbound event is dispatched anonymously
	ctl.handshake(ctx, sid, conn, c.GetString(TokenKey))
	go ctl.readPump(ctx, sid, conn)
}

// handshake attaches the identity carried by the upgrade request. A bad
// token leaves the connection anonymous.
func (ctl *SignalController) handshake(ctx context.Context, sid domain.ConnectionID, sig core.SignalConnection, token string) {
	if token == "" {
		return
	}
	user, err := ctl.Orch.Authenticate(ctx, sid, token)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("handshake token rejected")
		sendError(sig, core.KindAuthenticate, err)
		return
	}
	sendEvent(sig, core.KindAuthenticated, struct {
		User *domain.User `json:"user"`
	}{user})
}

// ingest is the shared inbound path of every transport.
func (ctl *SignalController) ingest(ctx context.Context, sid domain.ConnectionID, sig core.SignalConnection, data []byte) {
	env, err := core.DecodeEnvelope(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad envelope")
		sendError(sig, "", err)
		return
	}
	if !ctl.limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("type", string(env.Type)).Msg("rate limited")
		sendError(sig, env.Type, core.ErrRateLimited)
		return
	}
	_ = ctl.Orch.Dispatch(ctx, sid, env)
}

func (ctl *SignalController) release(sid domain.ConnectionID) {
	ctl.Orch.Disconnect(context.Background(), sid)
	ctl.limiter.Forget(sid)
}

func sendEvent(sig core.SignalConnection, kind core.Kind, payload any) {
	f, err := core.Encode(kind, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode event")
		return
	}
	_ = sig.TrySend(f)
}

func sendError(sig core.SignalConnection, event core.Kind, err error) {
	sendEvent(sig, core.KindError, core.ErrorPayload{
		Code:  core.ErrorCode(err),
		Event: event,
		Error: err.Error(),
	})
}
