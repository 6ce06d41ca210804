package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/shelfmark/shelfmark-server/internal/config"
	"github.com/shelfmark/shelfmark-server/internal/logger"
	"github.com/shelfmark/shelfmark-server/internal/pubsub"
	"github.com/shelfmark/shelfmark-server/internal/store"
)

// BrokerHandle wraps the event broker with its context for lifecycle management.
type BrokerHandle struct {
	*pubsub.Broker
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *BrokerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Broker.Shutdown(ctx)
}

// ProvideBroker provides the in-process event broker.
func ProvideBroker(i do.Injector) (*BrokerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	broker := pubsub.NewBroker(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go broker.Start(ctx)

	log.Info("Event broker started")

	return &BrokerHandle{
		Broker: broker,
		cancel: cancel,
	}, nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the database store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := filepath.Join(cfg.Metadata.BasePath, "db")
	db, err := store.New(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Store opened", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}
