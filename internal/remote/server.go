package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/hades/internal/config"
	"github.com/roach88/hades/internal/control"
)

const (
	commandPrefix = "CMD:"
	okPrefix      = "OK:"
	errPrefix     = "ERR:"
	eventPrefix   = "EVENT:"
)

// Server is a websocket monitor attached to a session.
type Server struct {
	session  *control.Session
	config   *config.Config
	logger   *slog.Logger
	hub      *hub
	upgrader websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithConfig sets the configuration resent by CMD:reset.
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) {
		s.config = cfg
	}
}

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a monitor for session. Call Run to start pushing events.
func NewServer(session *control.Session, opts ...Option) *Server {
	s := &Server{
		session: session,
		logger:  slog.Default(),
		hub:     newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The monitor is a local debugging aid; any origin may attach.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run forwards session events to connected clients until ctx is done or
// the session's event channel closes, then disconnects every client.
// Run may be called once.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	l := s.session.Listen()
	go s.hub.run(ctx)
	defer func() {
		l.Close()
		cancel()
		<-s.hub.done
	}()

	for {
		err := l.WaitContext(ctx)
		if errors.Is(err, control.ErrChannelClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, ev := range l.Pop() {
			s.hub.publish(eventPrefix + ev.String())
		}
	}
}

// ServeHTTP upgrades the request to a websocket and serves one client.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("monitor upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newClient(conn)
	if !s.hub.join(c) {
		conn.Close()
		return
	}
	s.logger.Info("monitor client connected", "remote", r.RemoteAddr)

	go c.writePump()
	go s.readPump(c, r.RemoteAddr)
}

func (s *Server) readPump(c *client, remote string) {
	defer func() {
		s.hub.leave(c)
		s.logger.Info("monitor client disconnected", "remote", remote)
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		for _, line := range strings.Split(strings.TrimRight(string(msg), "\n"), "\n") {
			if !c.enqueue(s.handle(line)) {
				return
			}
		}
	}
}

// handle executes one protocol line and returns the reply.
func (s *Server) handle(line string) string {
	line = strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(line, commandPrefix)
	if !ok {
		return errPrefix + "expected " + commandPrefix + "<command>"
	}
	args := strings.Fields(rest)
	if len(args) == 0 {
		return errPrefix + "empty command"
	}

	s.logger.Debug("monitor command", "command", rest)
	switch strings.ToLower(args[0]) {
	case "run":
		s.session.Send(control.Run())
		return okPrefix + "run"
	case "pause":
		s.session.Send(control.Pause())
		return okPrefix + "pause"
	case "reset":
		if s.config == nil {
			return errPrefix + "no configuration to reset with"
		}
		s.session.Send(control.Reset(s.config))
		return okPrefix + "reset"
	case "key":
		if len(args) != 3 {
			return errPrefix + "usage: key <name> <up|down>"
		}
		key, err := control.ParseKey(args[1])
		if err != nil {
			return errPrefix + err.Error()
		}
		var pressed bool
		switch strings.ToLower(args[2]) {
		case "down":
			pressed = true
		case "up":
		default:
			return errPrefix + "usage: key <name> <up|down>"
		}
		s.session.Send(control.KeyInput(key, pressed))
		return fmt.Sprintf("%skey %s %s", okPrefix, key, strings.ToLower(args[2]))
	case "status":
		return fmt.Sprintf("%s%s %d", okPrefix, s.session.State(), s.session.Frames().Frames())
	case "frame":
		digest, n := s.session.Frames().Digest()
		return fmt.Sprintf("%s%d %016x", okPrefix, n, digest)
	default:
		return fmt.Sprintf("%sunknown command %q", errPrefix, args[0])
	}
}

// ListenAndServe serves the monitor on addr until ctx is done or the
// session closes.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("monitor listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- s.Run(ctx)
		cancel()
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
		defer stop()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("monitor listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("monitor serve: %w", err)
	}
	cancel()
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
