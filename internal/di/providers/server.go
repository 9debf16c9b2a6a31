package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/atomshelf/atomshelf-server/internal/api"
	"github.com/atomshelf/atomshelf-server/internal/collection"
	"github.com/atomshelf/atomshelf-server/internal/config"
	"github.com/atomshelf/atomshelf-server/internal/logger"
	"github.com/atomshelf/atomshelf-server/internal/ratelimit"
	"github.com/atomshelf/atomshelf-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.limiter.Stop()
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	st := do.MustInvoke[*collection.Store](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	services := &api.Services{
		Gallery:  do.MustInvoke[*service.GalleryService](i),
		Taxonomy: do.MustInvoke[*service.TaxonomyService](i),
		Search:   do.MustInvoke[*service.SearchService](i),
	}

	limiter := ratelimit.New(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	handler := api.NewServer(st, services, sseHandle.Manager, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		WriteLimiter:   limiter,
	}, log.WithComponent("http").Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, limiter: limiter}, nil
}
