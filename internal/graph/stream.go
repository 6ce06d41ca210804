package graph

import (
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/botobag/artemis/graphql"
	"github.com/botobag/artemis/graphql/ast"
	"github.com/botobag/artemis/graphql/executor"

	"github.com/shelfmark/shelfmark-server/internal/pubsub"
)

// heartbeatInterval is how often a comment line is written to keep the SSE
// connection alive through proxies.
const heartbeatInterval = 30 * time.Second

// StreamHandler serves GraphQL subscriptions over SSE at /graphql/stream.
//
// The client sends a subscription document (GET with URL parameters or POST
// with the usual JSON envelope). Every event published on the matching topic
// re-executes the prepared operation with the event payload as root value,
// and the execution result is written as a "next" SSE event.
type StreamHandler struct {
	schema graphql.Schema
	broker *pubsub.Broker
	logger *slog.Logger
}

// NewStreamHandler creates a new subscription handler.
func NewStreamHandler(schema graphql.Schema, broker *pubsub.Broker, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		schema: schema,
		broker: broker,
		logger: logger,
	}
}

// ServeHTTP handles one subscription connection.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	operation, errs := prepareOperation(h.schema, req)
	if errs.HaveOccurred() {
		writeResult(w, h.logger, &executor.ExecutionResult{Errors: errs})
		return
	}

	if operation.Type() != ast.OperationTypeSubscription {
		http.Error(w, "only subscription operations are accepted on this endpoint", http.StatusBadRequest)
		return
	}

	// Check if request context is already canceled (early client disconnect).
	if r.Context().Err() != nil {
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	rc := http.NewResponseController(w)

	if err := rc.Flush(); err != nil {
		h.logger.Error("failed to flush headers", slog.String("error", err.Error()))
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sub, err := h.broker.Subscribe(pubsub.TopicBookAdded)
	if err != nil {
		h.logger.Error("failed to register subscriber", slog.String("error", err.Error()))
		http.Error(w, "Failed to establish subscription", http.StatusInternalServerError)
		return
	}
	defer h.broker.Unsubscribe(sub.ID)

	clientLogger := h.logger.With(slog.String("subscription_id", sub.ID))

	ctx := r.Context()

	heartbeatTicker := time.NewTicker(heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case event := <-sub.C:
			result := <-operation.Execute(ctx, executor.ExecuteParams{
				RootValue:      event.Payload,
				VariableValues: req.Variables,
			})
			if err := h.sendEvent(w, rc, "next", &result); err != nil {
				// Client disconnect is normal, not an error condition.
				clientLogger.Info("client disconnected during send")
				return
			}

		case <-heartbeatTicker.C:
			if err := h.sendHeartbeat(w, rc); err != nil {
				clientLogger.Info("client disconnected during heartbeat")
				return
			}

		case <-sub.Done:
			// Broker closed this subscription (server shutdown).
			if err := h.sendEvent(w, rc, "complete", struct{}{}); err != nil {
				clientLogger.Info("client disconnected during complete")
			}
			clientLogger.Info("subscription closed by broker")
			return

		case <-ctx.Done():
			clientLogger.Info("client context canceled")
			return
		}
	}
}

// sendEvent writes one SSE event with a JSON payload.
func (h *StreamHandler) sendEvent(w http.ResponseWriter, rc *http.ResponseController, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return err
	}

	return rc.Flush()
}

// sendHeartbeat writes an SSE comment line that clients ignore.
func (h *StreamHandler) sendHeartbeat(w http.ResponseWriter, rc *http.ResponseController) error {
	if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
		return err
	}
	return rc.Flush()
}
