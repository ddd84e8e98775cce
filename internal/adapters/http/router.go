package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dkeye/Parley/internal/adapters/signal"
	"github.com/dkeye/Parley/internal/app/orch"
	"github.com/dkeye/Parley/internal/config"
	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const sessionTokenKey = "token"

// SessionTokenMiddleware resolves the caller's session token from the
// Authorization header, the token query parameter, or the cookie session,
// in that order.
func SessionTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		if t, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
			token = t
		}
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			if v, ok := sessions.Default(c).Get(sessionTokenKey).(string); ok {
				token = v
			}
		}
		if token != "" {
			c.Set(signal.TokenKey, token)
		}
		c.Next()
	}
}

// TokenIssuer mints session tokens; only wired in debug mode.
type TokenIssuer interface {
	Issue(user domain.User) (string, error)
}

type Deps struct {
	Orch   *orch.Orchestrator
	Signal *signal.SignalController
	Auth   core.AuthService
	Tokens TokenIssuer
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ParleySessions", store))
	r.Use(SessionTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/healthz", func(c *gin.Context) {
		if deps.Orch.Draining() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "draining"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": deps.Orch.Registry.Count()})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": deps.Orch.Rooms.List()})
	})
	api.GET("/rooms/:id/members", func(c *gin.Context) {
		rid := domain.RoomID(c.Param("id"))
		if !deps.Orch.Rooms.Has(rid) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"roomId": rid, "members": memberViews(deps.Orch, rid)})
	})
	api.DELETE("/rooms/:id", func(c *gin.Context) {
		rid := domain.RoomID(c.Param("id"))
		n := deps.Orch.EvictRoom(rid)
		log.Info().Str("module", "adapters.http").Str("room", string(rid)).Int("evicted", n).Msg("room evicted")
		c.Status(http.StatusNoContent)
	})

	api.POST("/session", func(c *gin.Context) { createSession(c, deps.Auth) })
	api.DELETE("/session", func(c *gin.Context) {
		s := sessions.Default(c)
		s.Clear()
		if err := s.Save(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	if cfg.Mode == "debug" && deps.Tokens != nil {
		api.POST("/dev/token", func(c *gin.Context) { issueToken(c, deps.Tokens) })
	}

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Msg("ws signal endpoint hit")
		deps.Signal.HandleSignal(ctx, c)
	})

	poll := api.Group("/poll")
	poll.POST("", func(c *gin.Context) {
		sid, err := deps.Signal.OpenPoll(c.Request.Context(), c.GetString(signal.TokenKey))
		if err != nil {
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"connectionId": sid})
	})
	poll.GET("/:id", func(c *gin.Context) {
		batch, err := deps.Signal.ReceivePoll(c.Request.Context(), domain.ConnectionID(c.Param("id")))
		if err != nil && len(batch) == 0 {
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": batch})
	})
	poll.POST("/:id", func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, cfg.ReadLimit))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := deps.Signal.SendPoll(c.Request.Context(), domain.ConnectionID(c.Param("id")), body); err != nil {
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusAccepted)
	})
	poll.DELETE("/:id", func(c *gin.Context) {
		if !deps.Signal.ClosePoll(domain.ConnectionID(c.Param("id"))) {
			c.JSON(http.StatusNotFound, gin.H{"error": core.ErrUnknownConnection.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	return r
}

type memberView struct {
	ConnectionID domain.ConnectionID `json:"connectionId"`
	User         *domain.User        `json:"user,omitempty"`
	State        string              `json:"state"`
}

func memberViews(o *orch.Orchestrator, rid domain.RoomID) []memberView {
	ids := o.Rooms.Members(rid)
	out := make([]memberView, 0, len(ids))
	for _, sid := range ids {
		conn, err := o.Registry.Lookup(sid)
		if err != nil {
			continue
		}
		out = append(out, memberView{ConnectionID: sid, User: conn.User, State: conn.State.String()})
	}
	return out
}

type sessionRequest struct {
	Token string `json:"token" binding:"required"`
}

// createSession verifies a token once and keeps it in the cookie session
// so later upgrades carry the identity.
func createSession(c *gin.Context, verifier core.AuthService) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid token"})
		return
	}
	if verifier == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "authentication disabled"})
		return
	}
	user, err := verifier.VerifySession(c.Request.Context(), req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	s := sessions.Default(c)
	s.Set(sessionTokenKey, req.Token)
	if err := s.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type tokenRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Username string `json:"username" binding:"required"`
}

func issueToken(c *gin.Context, issuer TokenIssuer) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := domain.NewUser(domain.UserID(req.UserID), req.Username)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tok, err := issuer.Issue(*user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.Debug().Str("module", "adapters.http").Str("user", req.UserID).Msg("dev token issued")
	c.JSON(http.StatusOK, gin.H{"token": tok})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownConnection):
		return http.StatusNotFound
	case errors.Is(err, core.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrConnectionClosed):
		return http.StatusGone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}
