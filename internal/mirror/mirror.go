// Package mirror serves a read-only view of the floor state over HTTP
// and WebSocket, so a browser on the LAN can watch sessions progress.
// It never mutates the store; every response is built from snapshots.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/okatz/crewfloor/internal/debug"
	"github.com/okatz/crewfloor/internal/eventq"
	"github.com/okatz/crewfloor/internal/floor"
)

// Options configures the mirror server.
type Options struct {
	Host string
	Port int
}

// Snapshot is the wire form of the whole floor state.
type Snapshot struct {
	ActiveFloorID string         `json:"activeFloorId"`
	Floors        []*floor.Floor `json:"floors"`
}

type wsEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server hosts the mirror HTTP API and WebSocket snapshot stream.
type Server struct {
	store      *floor.Store
	httpServer *http.Server
	host       string
	port       int
}

// New constructs a mirror server over the store.
func New(store *floor.Store, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := opts.Port
	if port < 0 {
		port = 0
	}

	srv := &Server{store: store, host: host, port: port}

	mux := http.NewServeMux()
	srv.setupRoutes(mux)
	srv.httpServer = &http.Server{
		Addr:              srv.Addr(),
		Handler:           logMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

// Start binds the listener and serves in a background goroutine. A zero
// port picks a free one; Addr reports the bound address afterwards.
func (srv *Server) Start() error {
	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return err
	}
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		srv.port = tcpAddr.Port
		srv.httpServer.Addr = srv.Addr()
	}

	go func() {
		if err := srv.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debug.Logf("mirror", "server stopped with error: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (srv *Server) Shutdown(ctx context.Context) error {
	return srv.httpServer.Shutdown(ctx)
}

// Addr returns the bound host:port address.
func (srv *Server) Addr() string {
	return net.JoinHostPort(srv.host, strconv.Itoa(srv.port))
}

// URL returns the browsable base URL.
func (srv *Server) URL() string {
	return fmt.Sprintf("http://%s", srv.Addr())
}

// Port returns the bound port.
func (srv *Server) Port() int {
	return srv.port
}

func (srv *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/floors", srv.handleFloors)
	mux.HandleFunc("GET /api/floors/{id}", srv.handleFloorByID)
	mux.HandleFunc("GET /ws/floors", srv.handleFloorsWebSocket)

	mux.HandleFunc("GET /api/{rest...}", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

func (srv *Server) snapshot() Snapshot {
	return Snapshot{
		ActiveFloorID: srv.store.ActiveFloorID(),
		Floors:        srv.store.OrderedFloors(),
	}
}

func (srv *Server) handleFloors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, srv.snapshot())
}

func (srv *Server) handleFloorByID(w http.ResponseWriter, r *http.Request) {
	f, ok := srv.store.Floor(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "floor not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleFloorsWebSocket pushes a full snapshot on connect and after
// every store mutation, coalescing bursts into one frame.
func (srv *Server) handleFloorsWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer ws.CloseNow()

	ctx := r.Context()

	changed := eventq.NewNotifier()
	unsubscribe := srv.store.Subscribe(changed.Signal)
	defer unsubscribe()

	if err := srv.writeSnapshot(ctx, ws); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			ws.Close(websocket.StatusNormalClosure, "mirror closed")
			return
		case <-changed.Wait():
			if err := srv.writeSnapshot(ctx, ws); err != nil {
				return
			}
		}
	}
}

func (srv *Server) writeSnapshot(ctx context.Context, ws *websocket.Conn) error {
	data, err := json.Marshal(wsEnvelope{Type: "snapshot", Data: srv.snapshot()})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		debug.Logf("mirror", "%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
