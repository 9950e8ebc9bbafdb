package lcu

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// wampSubscribe is the opcode the client's event socket expects for topic
// subscriptions; wampEvent is the opcode on inbound event frames.
const (
	wampSubscribe = 5
	wampEvent     = 8
)

// Event is one push message from the local client.
type Event struct {
	URI       string          `json:"uri"`
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

// Config describes how to reach the local control endpoint. Host and
// Protocol default to the real client's values; tests override them to
// point at an httptest server.
type Config struct {
	Host     string // default 127.0.0.1
	Port     int
	Password string
	Protocol string // "https" (default) or "http"
	Logger   *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Protocol == "" {
		c.Protocol = "https"
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Handle owns exactly one transport to the local control endpoint: an
// authenticated HTTP client for requests and a websocket for push events.
// A Handle is never reused across reconnects; each dial builds a fresh one.
type Handle struct {
	base      string
	client    *http.Client
	ws        *websocket.Conn
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	log       *zap.Logger
	auth      string
}

// Dial connects to the local control endpoint and starts the event reader.
// The returned handle's Events channel is closed when the transport drops.
func Dial(ctx context.Context, cfg Config) (*Handle, error) {
	cfg = cfg.withDefaults()

	transport := &http.Transport{}
	if cfg.Protocol == "https" {
		// The client serves a self-signed cert.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	auth := basicAuth("riot", cfg.Password)

	wsScheme := "ws"
	if cfg.Protocol == "https" {
		wsScheme = "wss"
	}
	wsURL := fmt.Sprintf("%s://%s:%d/", wsScheme, cfg.Host, cfg.Port)
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{"wamp"},
		HTTPClient:   &http.Client{Transport: transport},
		HTTPHeader:   http.Header{"Authorization": []string{auth}},
	})
	if err != nil {
		return nil, fmt.Errorf("lcu: dial event socket: %w", err)
	}
	conn.SetReadLimit(1 << 24)

	h := &Handle{
		base:   fmt.Sprintf("%s://%s:%d", cfg.Protocol, cfg.Host, cfg.Port),
		client: &http.Client{Transport: transport},
		ws:     conn,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
		log:    cfg.Logger,
		auth:   auth,
	}
	go h.readLoop()
	return h, nil
}

// Request performs one JSON round-trip against the local REST surface.
// A failed call surfaces as a single error; this layer never retries.
// out may be nil when the caller only cares about the status.
func (h *Handle) Request(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("lcu: encode body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.base+path, reader)
	if err != nil {
		return 0, fmt.Errorf("lcu: build request: %w", err)
	}
	req.Header.Set("Authorization", h.auth)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("lcu: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("lcu: read %s: %w", path, err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return resp.StatusCode, fmt.Errorf("lcu: decode %s: %w", path, err)
			}
		}
	}
	return resp.StatusCode, nil
}

// Subscribe registers for push events on the given API path.
func (h *Handle) Subscribe(ctx context.Context, uri string) error {
	frame, err := json.Marshal([]any{wampSubscribe, Topic(uri)})
	if err != nil {
		return err
	}
	if err := h.ws.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("lcu: subscribe %s: %w", uri, err)
	}
	return nil
}

// Events delivers push events in arrival order. The channel closes when
// the transport drops.
func (h *Handle) Events() <-chan Event {
	return h.events
}

func (h *Handle) Close() error {
	h.closeOnce.Do(func() { close(h.done) })
	return h.ws.Close(websocket.StatusNormalClosure, "bye")
}

func (h *Handle) readLoop() {
	defer close(h.events)
	for {
		_, data, err := h.ws.Read(context.Background())
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				h.log.Debug("event socket closed", zap.Error(err))
			}
			return
		}

		ev, ok, err := decodeEventFrame(data)
		if err != nil {
			h.log.Warn("bad event frame", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		// Close must unblock this send even when nobody is draining the
		// buffer anymore.
		select {
		case h.events <- ev:
		case <-h.done:
			return
		}
	}
}

// decodeEventFrame unpacks [8, topic, {uri, eventType, data}]. Frames with
// another opcode are not events and are skipped.
func decodeEventFrame(data []byte) (Event, bool, error) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		return Event{}, false, fmt.Errorf("lcu: event frame: %w", err)
	}
	if len(frame) < 3 {
		return Event{}, false, nil
	}
	var op int
	if err := json.Unmarshal(frame[0], &op); err != nil || op != wampEvent {
		return Event{}, false, nil
	}
	var ev Event
	if err := json.Unmarshal(frame[2], &ev); err != nil {
		return Event{}, false, fmt.Errorf("lcu: event payload: %w", err)
	}
	return ev, true, nil
}

// Topic maps an API path to its event topic, e.g.
// /lol-gameflow/v1/gameflow-phase -> OnJsonApiEvent_lol-gameflow_v1_gameflow-phase.
func Topic(uri string) string {
	return "OnJsonApiEvent_" + strings.ReplaceAll(strings.TrimPrefix(uri, "/"), "/", "_")
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}
