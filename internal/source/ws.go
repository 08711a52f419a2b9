package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"solana-defi-indexer/internal/domain"
)

// WSConfig configures the WebSocket source.
type WSConfig struct {
	// Endpoint is the WebSocket URL of the transaction stream.
	Endpoint string
	// AuthToken, when set, is sent as an X-Token header on the handshake.
	AuthToken string
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the reconnect backoff.
	MaxReconnectDelay time.Duration
	// MaxReconnectAttempts bounds consecutive failed reconnects before
	// the source reports itself invalid.
	MaxReconnectAttempts int
	// ReadTimeout bounds a single read from the connection. Pong replies
	// to keepalive pings extend it, so a quiet but healthy stream never
	// trips the deadline.
	ReadTimeout time.Duration
	// PingInterval is the keepalive ping cadence. Must be shorter than
	// ReadTimeout.
	PingInterval time.Duration
	// WriteTimeout bounds control frame writes.
	WriteTimeout time.Duration

	Logger *log.Logger
}

func (c *WSConfig) applyDefaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 1 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
}

// WSSource streams chain events from a WebSocket endpoint delivering
// JSON transaction and block-metadata notifications. It reconnects with
// capped backoff on read failures and resubscribes after reconnecting.
type WSSource struct {
	cfg      WSConfig
	conn     *websocket.Conn
	pingStop chan struct{}
}

// wsNotification is the generic server push frame.
type wsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result json.RawMessage `json:"result"`
	} `json:"params"`
	// ID is set on subscription confirmations, which carry no events.
	ID *uint64 `json:"id"`
}

// blockMetaResult is the payload of a block-metadata notification.
type blockMetaResult struct {
	Slot            uint64 `json:"slot"`
	BlockHash       string `json:"blockhash"`
	ParentBlockHash string `json:"parentBlockhash"`
}

// NewWSSource connects to the endpoint and subscribes to transaction and
// block-metadata notifications.
func NewWSSource(ctx context.Context, cfg WSConfig) (*WSSource, error) {
	cfg.applyDefaults()
	s := &WSSource{cfg: cfg}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// connect dials the endpoint and performs the subscription handshake.
func (s *WSSource) connect(ctx context.Context) error {
	header := http.Header{}
	if s.cfg.AuthToken != "" {
		header.Set("X-Token", s.cfg.AuthToken)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.Endpoint, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.Endpoint, err)
	}

	subs := []map[string]any{
		{
			"jsonrpc": "2.0",
			"id":      1,
			"method":  "transactionSubscribe",
			"params": []any{map[string]any{
				"vote":   false,
				"failed": false,
			}},
		},
		{
			"jsonrpc": "2.0",
			"id":      2,
			"method":  "blockMetaSubscribe",
			"params":  []any{},
		},
	}
	for _, sub := range subs {
		if err := conn.WriteJSON(sub); err != nil {
			conn.Close()
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	s.conn = conn
	s.pingStop = make(chan struct{})
	go s.pingLoop(conn, s.pingStop)
	return nil
}

// pingLoop keeps an idle connection alive. A dead peer stops answering
// pings, the read deadline trips and the reader reconnects.
func (s *WSSource) pingLoop(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// closeConn stops the ping loop and tears down the connection.
func (s *WSSource) closeConn() error {
	if s.pingStop != nil {
		close(s.pingStop)
		s.pingStop = nil
	}
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// reconnect retries the handshake with capped exponential backoff.
// Exhausting MaxReconnectAttempts yields ErrInvalidSource.
func (s *WSSource) reconnect(ctx context.Context) error {
	s.closeConn()

	delay := s.cfg.ReconnectDelay
	for attempt := 1; attempt <= s.cfg.MaxReconnectAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if err := s.connect(ctx); err != nil {
			s.cfg.Logger.Printf("reconnect attempt %d/%d failed: %v",
				attempt, s.cfg.MaxReconnectAttempts, err)
			delay *= 2
			if delay > s.cfg.MaxReconnectDelay {
				delay = s.cfg.MaxReconnectDelay
			}
			continue
		}
		return nil
	}

	return fmt.Errorf("%w: reconnect attempts exhausted", ErrInvalidSource)
}

// NextEvent reads frames until one maps to a ChainEvent. Subscription
// confirmations and unknown methods are skipped.
func (s *WSSource) NextEvent(ctx context.Context) (*domain.ChainEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.conn == nil {
			if err := s.reconnect(ctx); err != nil {
				return nil, err
			}
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			s.cfg.Logger.Printf("set read deadline failed, reconnecting: %v", err)
			if rerr := s.reconnect(ctx); rerr != nil {
				return nil, rerr
			}
			continue
		}
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			s.cfg.Logger.Printf("read failed, reconnecting: %v", err)
			if rerr := s.reconnect(ctx); rerr != nil {
				return nil, rerr
			}
			continue
		}

		var note wsNotification
		if err := json.Unmarshal(msg, &note); err != nil {
			s.cfg.Logger.Printf("skipping undecodable frame: %v", err)
			continue
		}
		if note.ID != nil {
			continue // subscription confirmation
		}

		switch note.Method {
		case "transactionNotification":
			now := time.Now().Unix()
			rec, err := recordFromEnvelope(note.Params.Result, &now)
			if err != nil {
				s.cfg.Logger.Printf("skipping malformed transaction frame: %v", err)
				continue
			}
			return domain.NewTransactionEvent(rec), nil

		case "blockMetaNotification":
			var meta blockMetaResult
			if err := json.Unmarshal(note.Params.Result, &meta); err != nil {
				s.cfg.Logger.Printf("skipping malformed block meta frame: %v", err)
				continue
			}
			return domain.NewBlockMetaEvent(meta.Slot, meta.BlockHash, meta.ParentBlockHash), nil

		default:
			continue
		}
	}
}

// Close tears down the connection.
func (s *WSSource) Close() error {
	return s.closeConn()
}
