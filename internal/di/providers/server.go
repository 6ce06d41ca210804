package providers

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/shelfmark/shelfmark-server/internal/backup"
	"github.com/shelfmark/shelfmark-server/internal/config"
	"github.com/shelfmark/shelfmark-server/internal/graph"
	"github.com/shelfmark/shelfmark-server/internal/logger"
	"github.com/shelfmark/shelfmark-server/internal/server"
	"github.com/shelfmark/shelfmark-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	brokerHandle := do.MustInvoke[*BrokerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	catalogService := do.MustInvoke[*service.CatalogService](i)
	authService := do.MustInvoke[*service.AuthService](i)

	resolver := graph.NewResolver(catalogService, authService, log.Logger)
	schema, err := graph.NewSchema(resolver)
	if err != nil {
		return nil, err
	}

	graphHandler := graph.NewHandler(schema, log.Logger)
	streamHandler := graph.NewStreamHandler(schema, brokerHandle.Broker, log.Logger)

	storeHandle := do.MustInvoke[*StoreHandle](i)
	backupDir := filepath.Join(cfg.Metadata.BasePath, "backups")
	backupService := backup.NewService(storeHandle.Store, backupDir, serverVersion, log.Logger)

	handler := server.NewServer(graphHandler, streamHandler, authService, backupService, log.Logger)

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     handler,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
		// WriteTimeout stays unset: the SSE subscription stream holds its
		// response open for the lifetime of the client connection.
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr, "name", cfg.Server.Name)

	return &HTTPServerHandle{Server: srv}, nil
}
