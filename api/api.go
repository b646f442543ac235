// Package api serves the HTTP side channel: Prometheus metrics and
// blocklist lookups.
package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/kommendorkapten/bhdns/blocklist"
	"github.com/kommendorkapten/bhdns/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/semihalev/zlog/v2"
)

// API type
type API struct {
	addr      string
	router    *gin.Engine
	blocklist *blocklist.Blocklist
	whitelist *blocklist.Blocklist
}

var debugpprof bool

func init() {
	_, debugpprof = os.LookupEnv("BHDNS_PPROF")
}

// New return new api. The blocklists must not change once passed in.
func New(cfg *config.Config, bl, wl *blocklist.Blocklist) *API {
	gin.SetMode(gin.ReleaseMode)

	a := &API{
		addr:      cfg.API,
		router:    gin.New(),
		blocklist: bl,
		whitelist: wl,
	}
	a.router.Use(gin.Recovery())

	if debugpprof {
		pprof.Register(a.router)
	}

	block := a.router.Group("/api/v1/block")
	{
		block.GET("/exists/:key", a.existsBlock)
	}

	a.router.GET("/api/v1/health", a.health)
	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return a
}

func (a *API) existsBlock(ctx *gin.Context) {
	key := ctx.Param("key")
	exists := a.blocklist.MatchName(key) && !a.whitelist.MatchName(key)

	ctx.JSON(http.StatusOK, gin.H{"exists": exists})
}

func (a *API) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok", "blocked": a.blocklist.Len()})
}

// Handler returns the router, mostly for tests.
func (a *API) Handler() http.Handler { return a.router }

// Run serves the API until ctx is done. It returns immediately when no
// address is configured.
func (a *API) Run(ctx context.Context) error {
	if a.addr == "" {
		return nil
	}

	srv := &http.Server{
		Addr:              a.addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	zlog.Info("API server listening...", "addr", a.addr)

	select {
	case err := <-errCh:
		if err != nil {
			zlog.Error("Start API server failed", "error", err.Error())
		}
		return err
	case <-ctx.Done():
	}

	zlog.Info("API server stopping...", "addr", a.addr)

	apiCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(apiCtx); err != nil {
		zlog.Error("Shutdown API server failed", "error", err.Error())
		return err
	}

	return nil
}
