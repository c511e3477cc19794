// Package gateway is the WebSocket boundary between a client and its coaching
// session.
//
// Every connection owns one [session.Controller]. Client text frames carry
// JSON [Command] values; binary frames carry audio. The server pushes a
// [Message] of type "state" for every published snapshot and a [Message] of
// type "error" whenever a command is rejected.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/errgroup"

	"github.com/tomwolfe/ConvoCue/internal/audio"
	"github.com/tomwolfe/ConvoCue/internal/energy"
	"github.com/tomwolfe/ConvoCue/internal/observe"
	"github.com/tomwolfe/ConvoCue/internal/session"
)

const (
	defaultReadLimit    = 1 << 20
	defaultWriteTimeout = 5 * time.Second

	// errorBacklog bounds the error frames waiting for the writer. Further
	// errors are dropped and only logged.
	errorBacklog = 8
)

// Factory builds the controller for a new connection. The gateway runs and
// owns it until the connection ends.
type Factory func() (*session.Controller, error)

// Config configures a [Server].
type Config struct {
	// Factory is required.
	Factory Factory

	// OriginPatterns lists host patterns accepted for cross-origin upgrades.
	// Same-origin requests are always accepted.
	OriginPatterns []string

	// SampleRate is the rate Opus audio is resampled to. Default: 16000.
	SampleRate int

	// ReadLimit caps a single client frame in bytes. Default: 1 MiB.
	ReadLimit int64

	// WriteTimeout bounds a single server frame. Default: 5s.
	WriteTimeout time.Duration

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Server upgrades HTTP requests to coaching sessions. It is an
// [http.Handler] and safe for concurrent use.
type Server struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[*session.Controller]struct{}
	wg       sync.WaitGroup
}

// New creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Factory == nil {
		return nil, errors.New("gateway: factory is required")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[*session.Controller]struct{}),
	}, nil
}

// Len returns the number of connected sessions.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Refresh asks every connected session to republish its snapshot.
func (s *Server) Refresh() {
	s.mu.Lock()
	ctrls := make([]*session.Controller, 0, len(s.sessions))
	for c := range s.sessions {
		ctrls = append(ctrls, c)
	}
	s.mu.Unlock()

	for _, c := range ctrls {
		_ = c.Refresh()
	}
}

// Close ends every session and waits for their connections to finish.
// Requests arriving afterwards are refused.
func (s *Server) Close(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeHTTP upgrades the request and serves the session until either side
// goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.ctx.Err() != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.OriginPatterns,
	})
	if err != nil {
		slog.Warn("gateway: accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(s.cfg.ReadLimit)

	ctrl, err := s.cfg.Factory()
	if err != nil {
		slog.Error("gateway: create session", "err", err)
		conn.Close(websocket.StatusInternalError, "session unavailable")
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.track(ctrl)
	defer s.untrack(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	log := slog.With("session_id", ctrl.ID(), "remote", r.RemoteAddr)
	log.Info("gateway: client connected")

	c := &client{
		ctrl:   ctrl,
		conn:   conn,
		rate:   s.cfg.SampleRate,
		errs:   make(chan string, errorBacklog),
		log:    log,
		cancel: cancel,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(gctx) })
	g.Go(func() error { return c.writeLoop(gctx, s.cfg.WriteTimeout) })
	g.Go(func() error { return c.readLoop(gctx) })
	err = g.Wait()

	switch {
	case s.ctx.Err() != nil:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	case err != nil:
		log.Warn("gateway: connection ended", "err", err)
	}
	log.Info("gateway: client disconnected")
}

func (s *Server) track(c *session.Controller) {
	s.mu.Lock()
	s.sessions[c] = struct{}{}
	s.mu.Unlock()
	s.cfg.Metrics.ActiveSessions.Add(context.Background(), 1)
}

func (s *Server) untrack(c *session.Controller) {
	s.mu.Lock()
	delete(s.sessions, c)
	s.mu.Unlock()
	s.cfg.Metrics.ActiveSessions.Add(context.Background(), -1)
}

// client is the per-connection state shared by the read and write loops.
type client struct {
	ctrl *session.Controller
	conn *websocket.Conn
	rate int
	errs chan string
	log  *slog.Logger

	// cancel ends the connection when the client goes away.
	cancel context.CancelFunc

	// opus is non-nil once the client announced Opus audio. Only touched by
	// the read loop.
	opus *opusDecoder
}

// readLoop dispatches client frames until the connection closes.
func (c *client) readLoop(ctx context.Context) error {
	defer c.cancel()
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || isClientClose(err) {
				return nil
			}
			return fmt.Errorf("gateway: read: %w", err)
		}

		switch typ {
		case websocket.MessageText:
			err = c.handleCommand(data)
		case websocket.MessageBinary:
			err = c.handleAudio(data)
		}
		if errors.Is(err, session.ErrClosed) {
			return nil
		}
		if err != nil {
			c.report(err)
		}
	}
}

// writeLoop streams snapshots and error frames to the client.
func (c *client) writeLoop(ctx context.Context, timeout time.Duration) error {
	snaps, unsubscribe := c.ctrl.Subscribe()
	defer unsubscribe()

	for {
		var msg Message
		select {
		case <-ctx.Done():
			return nil
		case snap := <-snaps:
			msg = Message{Type: MsgState, State: &snap}
		case text := <-c.errs:
			msg = Message{Type: MsgError, Error: text}
		}

		wctx, cancel := context.WithTimeout(ctx, timeout)
		err := wsjson.Write(wctx, c.conn, msg)
		cancel()
		if err != nil {
			if ctx.Err() != nil || isClientClose(err) {
				return nil
			}
			return fmt.Errorf("gateway: write %s: %w", msg.Type, err)
		}
	}
}

// report queues an error frame for the client.
func (c *client) report(err error) {
	c.log.Debug("gateway: command rejected", "err", err)
	select {
	case c.errs <- err.Error():
	default:
		c.log.Warn("gateway: error backlog full, dropping", "err", err)
	}
}

func (c *client) handleCommand(data []byte) error {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return fmt.Errorf("gateway: decode command: %w", err)
	}

	switch cmd.Type {
	case CmdStart:
		return c.ctrl.Start()
	case CmdReset:
		return c.ctrl.Reset()
	case CmdText:
		return c.ctrl.IngestText(cmd.Text)
	case CmdPersona:
		return c.ctrl.SetPersona(cmd.ID)
	case CmdSensitivity:
		return c.ctrl.SetSensitivity(cmd.Level)
	case CmdPause:
		return c.ctrl.TogglePause()
	case CmdToggleSpeaker:
		return c.ctrl.ToggleSpeaker()
	case CmdDismiss:
		return c.ctrl.Dismiss()
	case CmdSummarize:
		return c.ctrl.Summarize()
	case CmdRecharge:
		amount := cmd.Amount
		if amount <= 0 {
			amount = energy.Max
		}
		return c.ctrl.Recharge(amount)
	case CmdHello:
		return c.setCodec(cmd.Codec)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
}

func (c *client) setCodec(codec string) error {
	switch codec {
	case "", CodecPCM:
		c.opus = nil
	case CodecOpus:
		if c.opus != nil {
			return nil
		}
		dec, err := newOpusDecoder(c.rate)
		if err != nil {
			return err
		}
		c.opus = dec
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedCodec, codec)
	}
	c.log.Debug("gateway: audio codec set", "codec", codec)
	return nil
}

func (c *client) handleAudio(data []byte) error {
	var (
		samples []float32
		err     error
	)
	if c.opus != nil {
		samples, err = c.opus.decode(data)
	} else {
		samples, err = audio.DecodeFloat32LE(data)
	}
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}
	return c.ctrl.IngestAudio(samples, session.Meta{RMS: audio.RMS(samples)})
}

// isClientClose reports whether err means the peer closed the connection
// normally.
func isClientClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
