// Package admin serves the operator HTTP surface of the home server:
// Prometheus metrics, a health check and read-only home lookups.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/cory-johannsen/simplehome/internal/home"
)

// Store is the read side of home.Store the admin routes use.
type Store interface {
	ListHomeNames(playerID string) []string
	GetHome(playerID, name string) (home.Home, error)
	Players() []string
	TotalHomes() int
}

// HomeView is the JSON form of a home.
type HomeView struct {
	Name  string  `json:"name"`
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// PlayerHomesView lists one player's homes in name order.
type PlayerHomesView struct {
	Player string     `json:"player"`
	Count  int        `json:"count"`
	Homes  []HomeView `json:"homes"`
}

func viewOf(h home.Home) HomeView {
	return HomeView{Name: h.Name, World: h.World, X: h.Position.X, Y: h.Position.Y, Z: h.Position.Z}
}

// NewRouter builds the admin routes.
//
// Precondition: store, gatherer and logger must be non-nil.
func NewRouter(store Store, gatherer prometheus.Gatherer, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), accessLog(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	v1.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"players": len(store.Players()), "homes": store.TotalHomes()})
	})
	v1.GET("/players/:player/homes", func(c *gin.Context) {
		player := c.Param("player")
		names := store.ListHomeNames(player)
		view := PlayerHomesView{Player: player, Count: len(names), Homes: make([]HomeView, 0, len(names))}
		for _, name := range names {
			// A home removed between the listing and the lookup is skipped.
			if h, err := store.GetHome(player, name); err == nil {
				view.Homes = append(view.Homes, viewOf(h))
			}
		}
		view.Count = len(view.Homes)
		c.JSON(http.StatusOK, view)
	})
	v1.GET("/players/:player/homes/:name", func(c *gin.Context) {
		// Names are stored in NFC, as the home commands normalize them.
		h, err := store.GetHome(c.Param("player"), norm.NFC.String(c.Param("name")))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, viewOf(h))
	})
	return r
}

// accessLog logs each request at debug level; scrapes and health checks are frequent.
func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("admin request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
