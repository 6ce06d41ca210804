package graph

import (
	"encoding/json/v2"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/botobag/artemis/graphql"
	"github.com/botobag/artemis/graphql/ast"
	"github.com/botobag/artemis/graphql/executor"
	"github.com/botobag/artemis/graphql/parser"
	"github.com/botobag/artemis/graphql/token"
)

// maxQuerySize caps the request body read for a GraphQL request.
const maxQuerySize = 1 << 20 // 1MB

// request is the standard GraphQL-over-HTTP request envelope.
type request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Handler serves GraphQL queries and mutations at POST /graphql.
type Handler struct {
	schema graphql.Schema
	logger *slog.Logger
}

// NewHandler creates a new GraphQL HTTP handler.
func NewHandler(schema graphql.Schema, logger *slog.Logger) *Handler {
	return &Handler{
		schema: schema,
		logger: logger,
	}
}

// ServeHTTP parses, prepares and executes one GraphQL operation. Errors are
// reported inside the response envelope; the transport itself stays 200
// except for malformed requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	if operation.Type() == ast.OperationTypeSubscription {
		writeResult(w, h.logger, &executor.ExecutionResult{
			Errors: graphql.ErrorsOf("Subscriptions are served over SSE at /graphql/stream."),
		})
		return
	}

	result := <-operation.Execute(r.Context(), executor.ExecuteParams{
		VariableValues: req.Variables,
	})
	writeResult(w, h.logger, &result)
}

// decodeRequest reads a GraphQL request from the POST body, or from URL
// parameters for GET requests.
func decodeRequest(r *http.Request) (*request, error) {
	if r.Method == http.MethodGet {
		return requestFromValues(r.URL.Query())
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxQuerySize))
	if err != nil {
		return nil, err
	}

	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	normalizeNumbers(req.Variables)
	return &req, nil
}

// normalizeNumbers rewrites whole float64 values as ints, in place. JSON
// decoding turns every number into a float64, which Int input coercion
// rejects.
func normalizeNumbers(variables map[string]any) {
	for k, v := range variables {
		variables[k] = normalizedValue(v)
	}
}

func normalizedValue(v any) any {
	switch v := v.(type) {
	case float64:
		if i := int(v); float64(i) == v {
			return i
		}
		return v
	case []any:
		for idx, e := range v {
			v[idx] = normalizedValue(e)
		}
		return v
	case map[string]any:
		normalizeNumbers(v)
		return v
	default:
		return v
	}
}

// requestFromValues builds a request from query string parameters, with
// variables passed as a JSON-encoded object.
func requestFromValues(values url.Values) (*request, error) {
	req := &request{
		Query:         values.Get("query"),
		OperationName: values.Get("operationName"),
	}

	if raw := values.Get("variables"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
			return nil, err
		}
		normalizeNumbers(req.Variables)
	}
	return req, nil
}

// prepareOperation parses the query document and binds the named operation to
// the schema.
func prepareOperation(schema graphql.Schema, req *request) (*executor.PreparedOperation, graphql.Errors) {
	document, err := parser.Parse(token.NewSource(&token.SourceConfig{
		Body: token.SourceBody([]byte(req.Query)),
	}), parser.ParseOptions{})
	if err != nil {
		var errs graphql.Errors
		errs.Append(err)
		return nil, errs
	}

	return executor.Prepare(executor.PrepareParams{
		Schema:        schema,
		Document:      document,
		OperationName: req.OperationName,
	})
}

// writeResult serializes an execution result as the JSON response body.
func writeResult(w http.ResponseWriter, logger *slog.Logger, result *executor.ExecutionResult) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := result.MarshalJSONTo(w); err != nil {
		logger.Error("failed to write graphql response", slog.String("error", err.Error()))
	}
}
