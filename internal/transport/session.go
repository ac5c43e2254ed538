// Package transport owns the single push-stream connection to the
// field-service backend: one logical connection per technician session,
// with automatic reconnect and a fixed backoff schedule. It carries no
// business logic; frames are handed to registered consumers as-is.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"fieldservice-backend/internal/auth"
	"fieldservice-backend/internal/metrics"
)

// State names the connection lifecycle states.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// Gauge maps the state onto its metric value.
func (s State) Gauge() float64 {
	switch s {
	case StateConnecting:
		return 1
	case StateConnected:
		return 2
	case StateReconnecting:
		return 3
	default:
		return 0
	}
}

// ConfigError reports an unusable session configuration, such as an empty
// technician code.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "transport config error: " + e.Reason
}

// DefaultBackoff is the retry schedule on unexpected disconnect; the final
// interval repeats indefinitely.
var DefaultBackoff = []time.Duration{0, 2 * time.Second, 5 * time.Second, 10 * time.Second, 30 * time.Second}

// FrameHandler consumes one raw inbound frame.
type FrameHandler func(frame []byte)

// StatusFunc is the side channel for connection status. Connection errors
// are reported here and never thrown to callers of Open.
type StatusFunc func(state State, err error)

// Config parameterizes the session's upstream endpoint.
type Config struct {
	StreamURL string
	Headers   map[string]string
	Backoff   []time.Duration
}

// Session maintains the push stream. Open is idempotent while a stream
// loop is running; Close aborts pending reconnect timers.
type Session struct {
	cfg     Config
	auth    *auth.Context
	metrics *metrics.Collector
	status  StatusFunc

	// No overall timeout: the stream is long-lived by design.
	client *http.Client

	mu       sync.Mutex
	state    State
	handlers []FrameHandler
	cancel   context.CancelFunc
}

// NewSession creates a session for the given endpoint and technician
// session context.
func NewSession(cfg Config, authCtx *auth.Context, m *metrics.Collector, status StatusFunc) *Session {
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = DefaultBackoff
	}
	return &Session{
		cfg:     cfg,
		auth:    authCtx,
		metrics: m,
		status:  status,
		client:  &http.Client{},
		state:   StateDisconnected,
	}
}

// OnFrame registers a consumer of raw inbound frames. Multiple handlers
// fan out; each receives the same frame, order unspecified.
func (s *Session) OnFrame(h FrameHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open starts the connection loop. It is a no-op if the loop is already
// running. It returns a ConfigError for an empty technician code;
// connection failures go to the status callback, never to the caller.
func (s *Session) Open(ctx context.Context) error {
	if s.auth.Session().TechCode == "" {
		return &ConfigError{Reason: "technician code is empty"}
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(runCtx)
	return nil
}

// Close releases the stream and suppresses further retries. Safe to call
// from any state. In-flight action calls elsewhere are unaffected.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) run(ctx context.Context) {
	attempt := 0
	for {
		if attempt == 0 {
			s.setState(StateConnecting)
		} else {
			s.setState(StateReconnecting)
			if s.metrics != nil {
				s.metrics.RecordReconnect()
			}
		}

		connected, err := s.stream(ctx)
		if ctx.Err() != nil {
			s.setState(StateDisconnected)
			return
		}

		if errors.Is(err, auth.ErrUnauthorized) {
			if s.metrics != nil {
				s.metrics.RecordUnauthorized()
			}
			s.setState(StateDisconnected)
			s.report(err)
			s.auth.SignalUnauthorized("transport")
			return
		}

		if err != nil {
			log.Printf("transport: stream ended: %v", err)
			s.report(err)
		}
		if connected {
			attempt = 0
		}

		delay := s.cfg.Backoff[len(s.cfg.Backoff)-1]
		if attempt < len(s.cfg.Backoff) {
			delay = s.cfg.Backoff[attempt]
		}
		attempt++

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				s.setState(StateDisconnected)
				return
			case <-timer.C:
			}
		}
	}
}

// stream performs one connection attempt and reads frames until the
// stream breaks. connected reports whether the upstream accepted the
// connection at all, which resets the backoff schedule.
func (s *Session) stream(ctx context.Context) (connected bool, err error) {
	streamURL, err := s.buildURL()
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	for key, value := range s.cfg.Headers {
		req.Header.Set(key, value)
	}
	s.auth.Authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("stream connect failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return false, auth.ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("stream rejected with status %d", resp.StatusCode)
	}

	s.setState(StateConnected)
	s.report(nil)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if data.Len() > 0 {
				s.dispatch(append([]byte(nil), data.Bytes()...))
				data.Reset()
			}
			continue
		}
		if strings.HasPrefix(line, "data:") {
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
		// event:/id:/comment lines carry no payload for this backend.
	}
	if serr := scanner.Err(); serr != nil {
		return true, fmt.Errorf("stream read failed: %w", serr)
	}
	return true, fmt.Errorf("stream closed by upstream")
}

func (s *Session) buildURL() (string, error) {
	u, err := url.Parse(s.cfg.StreamURL)
	if err != nil {
		return "", &ConfigError{Reason: fmt.Sprintf("invalid stream url %q", s.cfg.StreamURL)}
	}
	q := u.Query()
	q.Set("techCode", s.auth.Session().TechCode)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Session) dispatch(frame []byte) {
	s.mu.Lock()
	handlers := make([]FrameHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()
	for _, h := range handlers {
		h(frame)
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SetConnectionState(state.Gauge())
	}
}

func (s *Session) report(err error) {
	if s.status != nil {
		s.status(s.State(), err)
	}
}
