// Package bridge talks to the companion browser extension over a local
// WebSocket. The extension connects to the sidebar; commands go out as JSON
// text frames and are answered by responses carrying the same ID. Tab and
// group events arrive unsolicited.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"github.com/lotas/sidestack/internal/applog"
	"github.com/lotas/sidestack/internal/host"
)

// DefaultTimeout bounds a command when the caller's context has no deadline.
const DefaultTimeout = 5 * time.Second

// ErrNotConnected is returned by commands while no extension is connected.
var ErrNotConnected = errors.New("extension not connected")

// Server manages the WebSocket connection to the extension and implements
// host.Host on top of it.
type Server struct {
	port    int
	timeout time.Duration
	events  chan host.Event
	nextID  atomic.Uint64

	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
	pending map[string]chan IncomingMsg
}

// New creates a new Server. Port 0 means the caller manages the listener.
// A zero timeout uses DefaultTimeout.
func New(port int, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Server{
		port:    port,
		timeout: timeout,
		events:  make(chan host.Event, 64),
		pending: make(map[string]chan IncomingMsg),
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Events returns the channel of tab and group events from the extension.
func (s *Server) Events() <-chan host.Event {
	return s.events
}

// Connected reports whether an extension is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Call sends a command and waits for its response. The message ID is
// assigned here.
func (s *Server) Call(ctx context.Context, msg OutgoingMsg) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	msg.ID = fmt.Sprintf("cmd-%d", s.nextID.Add(1))
	reply := make(chan IncomingMsg, 1)

	s.mu.Lock()
	conn := s.conn
	connCtx := s.connCtx
	if conn == nil {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	s.pending[msg.ID] = reply
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, msg.ID)
		s.mu.Unlock()
	}()

	applog.Info("ws.send", "action", msg.Action, "id", msg.ID)
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	writeCtx, cancel := mergeDone(ctx, connCtx)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return nil, fmt.Errorf("%s: %w", msg.Action, err)
	}

	select {
	case resp := <-reply:
		if resp.OK == nil || !*resp.OK {
			return nil, responseError(msg.Action, resp)
		}
		return resp.Result, nil
	case <-ctx.Done():
		applog.Warn("ws.timeout", "action", msg.Action, "id", msg.ID)
		return nil, fmt.Errorf("%s: %w", msg.Action, ctx.Err())
	}
}

func responseError(action string, resp IncomingMsg) error {
	text := resp.Error
	if text == "" {
		text = "command failed"
	}
	switch resp.Code {
	case CodeUnsupported:
		return fmt.Errorf("%s: %s: %w", action, text, host.ErrUnsupported)
	case CodeNotFound:
		return fmt.Errorf("%s: %s: %w", action, text, host.ErrNotFound)
	}
	return fmt.Errorf("%s: %s", action, text)
}

// mergeDone returns a context that ends when either parent ends. Values
// come from a.
func mergeDone(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	if b == nil {
		return ctx, cancel
	}
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(16 << 20) // windows with thousands of tabs

		ctx := r.Context()
		s.mu.Lock()
		if s.conn != nil {
			applog.Info("ws.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.connCtx = ctx
		s.mu.Unlock()

		applog.Info("ws.connected", "remote", r.RemoteAddr)
		s.emit(host.Event{Kind: host.TabUpdated})

		defer func() {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
				s.connCtx = nil
				s.failPendingLocked("extension disconnected")
			}
			s.mu.Unlock()
			conn.CloseNow()
			applog.Info("ws.disconnected")
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			s.dispatch(msg)
		}
	})
}

func (s *Server) dispatch(msg IncomingMsg) {
	if msg.Type == TypeResponse {
		s.mu.Lock()
		reply, ok := s.pending[msg.ID]
		s.mu.Unlock()
		if !ok {
			applog.Warn("ws.orphan", "id", msg.ID)
			return
		}
		select {
		case reply <- msg:
		default:
		}
		return
	}

	ev, ok := ParseEvent(msg)
	if !ok {
		applog.Warn("ws.unknown", "type", msg.Type)
		return
	}
	applog.Info("ws.recv", "type", msg.Type, "window", ev.WindowID)
	s.emit(ev)
}

// emit never blocks; a slow consumer loses events but a later one still
// triggers a full refresh.
func (s *Server) emit(ev host.Event) {
	select {
	case s.events <- ev:
	default:
		applog.Warn("ws.event_dropped", "type", ev.Kind)
	}
}

func (s *Server) failPendingLocked(reason string) {
	ok := false
	for id, reply := range s.pending {
		select {
		case reply <- IncomingMsg{Type: TypeResponse, ID: id, OK: &ok, Error: reason}:
		default:
		}
	}
}

// ListenAndServe starts the WebSocket server on the configured port.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
