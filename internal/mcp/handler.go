package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/drsullivan13/weather-server/internal/common"
)

// maxBodySize caps bodies the handler reads itself when no parsed body is
// present in the request context.
const maxBodySize = 1 << 20

// internalErrorBody is returned when handling fails before any response
// bytes were written.
const internalErrorBody = `{"jsonrpc":"2.0","error":{"code":-32603,"message":"Internal server error"},"id":null}`

// Handler is the HTTP handler for the MCP endpoint. Every request gets its
// own Transport, which is released when the request finishes or the client
// goes away, whichever happens first.
type Handler struct {
	registry     *Registry
	logger       *common.Logger
	newTransport func() *Transport
}

// NewHandler creates a handler serving the tools in registry.
func NewHandler(registry *Registry, logger *common.Logger) *Handler {
	return &Handler{
		registry: registry,
		logger:   logger,
		newTransport: func() *Transport {
			return NewTransport(registry.Server(), logger)
		},
	}
}

// ServeHTTP pipes the JSON-RPC body through a fresh Transport.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.logger
	if id := common.CorrelationIDFromContext(r.Context()); id != "" {
		logger = logger.WithCorrelationId(id)
	}
	tw := &trackingWriter{ResponseWriter: w}

	t := h.newTransport()
	stop := context.AfterFunc(r.Context(), func() { t.Close() })
	defer func() {
		stop()
		t.Close()
	}()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Str("transport_id", t.ID()).Str("panic", fmt.Sprint(rec)).Msg("panic while handling MCP request")
			h.writeInternalError(tw, logger)
		}
	}()

	body, err := requestBody(r)
	if err != nil {
		logger.Error().Str("error", err.Error()).Msg("failed to read MCP request body")
		h.writeInternalError(tw, logger)
		return
	}

	logger.Debug().
		Str("transport_id", t.ID()).
		Str("rpc_method", rpcMethod(body)).
		Str("body", string(body)).
		Msg("received MCP request")

	start := time.Now()
	if err := t.HandleRequest(tw, r, body); err != nil {
		logger.Error().Str("transport_id", t.ID()).Str("error", err.Error()).Msg("error handling MCP request")
		h.writeInternalError(tw, logger)
		return
	}

	logger.Debug().
		Str("transport_id", t.ID()).
		Int("status", tw.status).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("MCP request handled")
}

// writeInternalError sends the fixed JSON-RPC internal error, unless the
// response has already started.
func (h *Handler) writeInternalError(w *trackingWriter, logger *common.Logger) {
	if w.wroteHeader {
		logger.Warn().Msg("response already started, cannot send internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	io.WriteString(w, internalErrorBody)
}

// requestBody returns the body parsed upstream, reading it directly when
// the handler is mounted without the JSON body middleware.
func requestBody(r *http.Request) (json.RawMessage, error) {
	if body, ok := common.RequestBodyFromContext(r.Context()); ok {
		return body, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func rpcMethod(body json.RawMessage) string {
	var msg struct {
		Method string `json:"method"`
	}
	if json.Unmarshal(body, &msg) != nil {
		return ""
	}
	return msg.Method
}

// trackingWriter records whether the response has started.
type trackingWriter struct {
	http.ResponseWriter
	wroteHeader bool
	status      int
}

func (w *trackingWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *trackingWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(p)
}
