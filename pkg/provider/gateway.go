package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/notifycore/pkg/compress"
	"github.com/dmitrymomot/notifycore/pkg/notify"
	"github.com/dmitrymomot/notifycore/pkg/retry"
)

// GatewayConfig configures the HTTP push gateway provider.
type GatewayConfig struct {
	Name     string        `env:"PUSH_GATEWAY_NAME" envDefault:"push"`
	URL      string        `env:"PUSH_GATEWAY_URL"`
	Secret   string        `env:"PUSH_GATEWAY_SECRET"`
	Timeout  time.Duration `env:"PUSH_GATEWAY_TIMEOUT" envDefault:"10s"`
	Priority int           `env:"PUSH_GATEWAY_PRIORITY" envDefault:"10"`
	// Channel selects the truncation limits applied by the payload encoder.
	Channel string `env:"PUSH_GATEWAY_CHANNEL" envDefault:"push"`
}

// PayloadEncoder produces the compact wire form of a single message.
type PayloadEncoder interface {
	Optimize(msg notify.Message, channel string) (compress.Payload, error)
}

// Gateway posts notifications to a push relay over HTTP:
//
//	POST {url}/send   one message
//	POST {url}/batch  one message, many recipients
//	GET  {url}/health liveness
//
// Requests are signed when a secret is configured.
type Gateway struct {
	cfg     GatewayConfig
	client  *http.Client
	encoder PayloadEncoder
	now     func() time.Time
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithHTTPClient replaces the default client, mainly for tests.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *Gateway) {
		if c != nil {
			g.client = c
		}
	}
}

// WithPayloadEncoder makes single sends use the compact, possibly
// compressed, payload format.
func WithPayloadEncoder(e PayloadEncoder) GatewayOption {
	return func(g *Gateway) { g.encoder = e }
}

func NewGateway(cfg GatewayConfig, opts ...GatewayOption) *Gateway {
	if cfg.Name == "" {
		cfg.Name = "push"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Channel == "" {
		cfg.Channel = compress.ChannelPush
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")

	g := &Gateway{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Name() string    { return g.cfg.Name }
func (g *Gateway) Priority() int   { return g.cfg.Priority }
func (g *Gateway) IsEnabled() bool { return g.cfg.URL != "" }

func (g *Gateway) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.URL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

type gatewayMessage struct {
	ID        string         `json:"id"`
	UserID    int64          `json:"user_id,omitempty"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	Priority  string         `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
}

func toGatewayMessage(msg notify.Message) gatewayMessage {
	return gatewayMessage{
		ID:        msg.ID,
		UserID:    msg.UserID,
		Type:      msg.Type,
		Title:     msg.Title,
		Body:      msg.Body,
		Data:      msg.Data,
		Priority:  msg.Priority.String(),
		CreatedAt: msg.CreatedAt,
	}
}

func (g *Gateway) Send(ctx context.Context, msg notify.Message) error {
	if g.encoder == nil {
		_, err := g.post(ctx, "/send", toGatewayMessage(msg))
		return err
	}

	p, err := g.encoder.Optimize(msg, g.cfg.Channel)
	if err != nil {
		return retry.Wrap(retry.KindInvalidPayload, err)
	}
	header := http.Header{}
	if p.Shortened {
		header.Set("X-Payload-Format", "compact")
	}
	if p.Compressed() {
		header.Set("Content-Encoding", p.Encoding)
	}
	if p.Truncated {
		header.Set("X-Payload-Truncated", "1")
	}
	_, err = g.do(ctx, "/send", p.Data, header)
	return err
}

type batchRequest struct {
	Recipients []int64        `json:"recipients"`
	Message    gatewayMessage `json:"message"`
	// IDs maps user id to the per-recipient message id.
	IDs map[string]string `json:"ids,omitempty"`
}

// batchResponse lists recipients the relay could not reach, keyed by user id,
// valued by an HTTP-like status code.
type batchResponse struct {
	Failed map[string]int `json:"failed"`
}

func (g *Gateway) SendBatch(ctx context.Context, userIDs []int64, msg notify.Message) (BatchResult, error) {
	m := toGatewayMessage(msg)
	m.UserID = 0

	req := batchRequest{Recipients: userIDs, Message: m}
	for _, id := range userIDs {
		if rid, ok := msg.RecipientIDs[id]; ok && rid != "" {
			if req.IDs == nil {
				req.IDs = make(map[string]string, len(userIDs))
			}
			req.IDs[strconv.FormatInt(id, 10)] = rid
		}
	}
	body, err := g.post(ctx, "/batch", req)
	if err != nil {
		return BatchResult{}, err
	}

	var resp batchResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return BatchResult{}, retry.Wrap(retry.KindServerError, fmt.Errorf("decode batch response: %w", err))
		}
	}

	res := BatchResult{Failed: make(map[int64]error, len(resp.Failed))}
	for idStr, code := range resp.Failed {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		res.Failed[id] = retry.Wrap(retry.FromHTTPStatus(code), fmt.Errorf("%w: recipient status %d", ErrGatewayRejected, code))
	}
	for _, id := range userIDs {
		if _, failed := res.Failed[id]; !failed {
			res.Delivered = append(res.Delivered, id)
		}
	}
	return res, nil
}

func (g *Gateway) post(ctx context.Context, path string, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, retry.Wrap(retry.KindInvalidPayload, fmt.Errorf("marshal gateway payload: %w", err))
	}
	return g.do(ctx, path, payload, nil)
}

func (g *Gateway) do(ctx context.Context, path string, payload []byte, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, retry.Wrap(retry.KindClientError, fmt.Errorf("build gateway request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "notifycore-gateway/1.0")
	for k, v := range header {
		req.Header[k] = v
	}
	if g.cfg.Secret != "" {
		if err := Sign(req.Header, g.cfg.Secret, payload, g.now()); err != nil {
			return nil, err
		}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		// Classification of timeouts and dial errors happens in retry.Classify.
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := strings.ReplaceAll(string(body), "\n", " ")
		if len(detail) > 200 {
			detail = detail[:200] + "..."
		}
		return nil, retry.Wrap(
			retry.FromHTTPStatus(resp.StatusCode),
			fmt.Errorf("%w: status %d: %s", ErrGatewayRejected, resp.StatusCode, detail),
		)
	}
	return body, nil
}
