package mosaic

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/mosaicctl/internal/observability"
	"github.com/danmuck/mosaicctl/internal/protocol"
)

// buildEngine assembles the loopback engine: shared middleware chain,
// the wire endpoint, health and metrics, and the admin surface.
func (m *Manager) buildEngine() *gin.Engine {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(m.cfg.ID))
	r.Use(observability.CloseConnections())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"http://localhost:3000"},
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.POST("/", m.handleWire)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"manager": m.cfg.ID,
			"phase":   m.Phase(),
			"port":    m.Port(),
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   m.Running(),
			"manager": m.cfg.ID,
			"phase":   m.Phase(),
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/admin", m.handleAdmin)

	return r
}

// handleWire decodes one wire request and dispatches on its kind.
// Register and add_action failures answer loudly with a 500; schema
// violations answer 400 and poison only their own request; objects with
// no recognized key get an empty success.
func (m *Manager) handleWire(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "read request: %v", err)
		return
	}
	req, err := protocol.DecodeRequest(body)
	if err != nil {
		log.Warn().Err(err).Msg("wire_violation")
		c.String(http.StatusBadRequest, "%v", err)
		return
	}

	switch req.Kind {
	case protocol.KindRegister:
		if err := m.registerTile(req.Name); err != nil {
			log.Error().Str("tile", req.Name).Err(err).Msg("register_rejected")
			c.String(http.StatusInternalServerError, "%v", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": protocol.RegisterOK})
	case protocol.KindUnregister:
		m.unregisterTile(req.Name)
		c.Status(http.StatusOK)
	case protocol.KindAskAction:
		c.JSON(http.StatusOK, m.CheckQueue(req.Name))
	case protocol.KindAddAction:
		if err := m.RequestAction(req.Action.Tile, req.Action.Kind, req.Action.Values); err != nil {
			log.Warn().Str("tile", req.Action.Tile).Err(err).Msg("add_action_rejected")
			c.String(http.StatusInternalServerError, "%v", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": protocol.RegisterOK})
	case protocol.KindCallback:
		c.JSON(http.StatusOK, gin.H{"queue_pop": m.handleCallback(req.Callback)})
	default:
		c.Status(http.StatusOK)
	}
}
