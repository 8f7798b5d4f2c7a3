// Package server exposes the selected backend over HTTP for tool layers that
// prefer REST to linking the module directly.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/retrolab/c64bridge/internal/facade"
	"github.com/retrolab/c64bridge/internal/observability"
	"github.com/retrolab/c64bridge/internal/selector"
)

// Config tunes the bridge's HTTP surface.
type Config struct {
	Addr        string
	CorsOrigins []string
}

func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8064"
	}
	return c
}

// Bridge serves the facade. It holds the one Selection made at composition
// time; backend choice never changes over the server's lifetime.
type Bridge struct {
	cfg       Config
	selection selector.Selection
	router    *gin.Engine
	started   time.Time
}

func New(cfg Config, selection selector.Selection) *Bridge {
	cfg = cfg.WithDefaults()
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST", "PUT"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	b := &Bridge{cfg: cfg, selection: selection, router: r, started: time.Now()}
	b.registerRoutes()
	return b
}

func (b *Bridge) backend() facade.Backend { return b.selection.Backend }

func (b *Bridge) HTTPRouter() *gin.Engine { return b.router }

// Run blocks serving HTTP until the listener fails or ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	srv := &http.Server{Addr: b.cfg.Addr, Handler: b.router}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info().Str("component", "server").Str("addr", b.cfg.Addr).
		Str("backend", string(b.selection.Kind)).Msg("bridge listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
