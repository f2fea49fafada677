package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/medassist/internal/adapters/rtc"
	"github.com/dkeye/medassist/internal/adapters/signal"
	"github.com/dkeye/medassist/internal/app"
	"github.com/dkeye/medassist/internal/app/orch"
	"github.com/dkeye/medassist/internal/config"
	"github.com/dkeye/medassist/internal/domain"
	"github.com/dkeye/medassist/internal/store"
)

const clientTokenKey = "client_token"

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware keeps a stable per-browser token in the signed session cookie.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			sess.Set(clientTokenKey, token)
			if err := sess.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cookies := cookie.NewStore([]byte(cfg.Secret))
	cookies.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("MedAssistSessions", cookies))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": o.Registry.Count()})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(o, cfg)
	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client", c.GetString(clientTokenKey)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	h := &handlers{orch: o, store: o.Store, ice: cfg.ICEServers}
	api.GET("/rooms", h.listRooms)
	api.GET("/rooms/:id", h.getRoom)
	api.DELETE("/rooms/:id", h.evictRoom)
	api.GET("/patients/:id/presence", h.presence)
	api.GET("/ice-servers", h.iceServers)
	api.GET("/consultations/:appointmentId", h.consultation)

	return r
}

type handlers struct {
	orch  *orch.Orchestrator
	store store.Store
	ice   []config.ICEServer
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Rooms.List())
}

func (h *handlers) getRoom(c *gin.Context) {
	view, ok := h.orch.Rooms.Lookup(domain.RoomID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": app.ErrRoomNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, view.Info())
}

func (h *handlers) evictRoom(c *gin.Context) {
	if err := h.orch.Evict(domain.RoomID(c.Param("id"))); err != nil {
		if errors.Is(err, app.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) presence(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": h.orch.Registry.Online(domain.ExternalID(c.Param("id")))})
}

func (h *handlers) iceServers(c *gin.Context) {
	rc, err := rtc.Configuration(h.ice)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ice servers")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bad ice configuration"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"iceServers": rc.ICEServers})
}

func (h *handlers) consultation(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": store.ErrNotFound.Error()})
		return
	}
	cons, err := h.store.GetConsultation(c.Request.Context(), domain.ExternalID(c.Param("appointmentId")))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("get consultation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}
	c.JSON(http.StatusOK, cons)
}
