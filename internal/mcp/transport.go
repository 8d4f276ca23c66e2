package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/drsullivan13/weather-server/internal/common"
)

// ErrTransportClosed is returned when a closed Transport is asked to handle
// a request.
var ErrTransportClosed = errors.New("transport closed")

// Transport carries exactly one HTTP request through the MCP server. It is
// stateless (no session IDs) and answers with a single JSON body.
type Transport struct {
	id         string
	streamable *mcpserver.StreamableHTTPServer
	logger     *common.Logger

	mu      sync.Mutex
	failure CodedError

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewTransport binds srv to a fresh stateless transport.
func NewTransport(srv *mcpserver.MCPServer, logger *common.Logger) *Transport {
	return &Transport{
		id: uuid.New().String(),
		streamable: mcpserver.NewStreamableHTTPServer(srv,
			mcpserver.WithStateLess(true),
			mcpserver.WithDisableStreaming(true),
			mcpserver.WithLogger(common.NewTransportLogger(logger)),
		),
		logger: logger,
	}
}

// ID identifies the transport in logs.
func (t *Transport) ID() string {
	return t.id
}

// HandleRequest forwards body through the MCP server and writes the
// JSON-RPC response to w. Nothing is written to w if an error is returned
// before the response is ready.
func (t *Transport) HandleRequest(w http.ResponseWriter, r *http.Request, body json.RawMessage) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}

	req := r.Clone(withTransport(r.Context(), t))
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))

	buf := newBufferedResponse()
	t.streamable.ServeHTTP(buf, req)

	if t.closed.Load() {
		return ErrTransportClosed
	}

	payload := t.shapeEnvelope(buf.body.Bytes())

	for key, vals := range buf.header {
		for _, v := range vals {
			w.Header().Add(key, v)
		}
	}
	if len(payload) != buf.body.Len() {
		w.Header().Del("Content-Length")
	}
	w.WriteHeader(buf.statusCode())
	_, err := w.Write(payload)
	return err
}

// Close releases the transport. It is safe to call more than once and from
// multiple goroutines.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		err = t.streamable.Shutdown(context.Background())
		t.logger.Debug().Str("transport_id", t.id).Msg("transport closed")
	})
	return err
}

// Closed reports whether Close has been called.
func (t *Transport) Closed() bool {
	return t.closed.Load()
}

func (t *Transport) recordFailure(err CodedError) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failure = err
}

func (t *Transport) recordedFailure() CodedError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failure
}

// rpcErrorEnvelope is a JSON-RPC error response with its id kept verbatim.
type rpcErrorEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *rpcErrorDetail `json:"error"`
}

type rpcErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// shapeEnvelope replaces the generic internal error code the MCP server
// assigns to tool failures with the code of the recorded failure.
func (t *Transport) shapeEnvelope(payload []byte) []byte {
	failure := t.recordedFailure()
	if failure == nil {
		return payload
	}

	var env rpcErrorEnvelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Error == nil {
		return payload
	}
	env.Error.Code = failure.RPCCode()
	if data := failure.RPCData(); data != nil {
		env.Error.Data = data
	}
	if len(env.ID) == 0 {
		env.ID = json.RawMessage("null")
	}

	shaped, err := json.Marshal(env)
	if err != nil {
		t.logger.Error().Str("transport_id", t.id).Str("error", err.Error()).Msg("failed to shape error envelope")
		return payload
	}
	return append(shaped, '\n')
}

// bufferedResponse collects the MCP server's response so that it can be
// inspected before anything reaches the client.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}
