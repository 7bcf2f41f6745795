package compress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"

	"github.com/dmitrymomot/notifycore/pkg/notify"
)

// EncodingZstd marks a zstd compressed payload.
const EncodingZstd = "zstd"

// Payload is an optimized message ready for the wire.
type Payload struct {
	Data         []byte `json:"data"`
	Encoding     string `json:"encoding,omitempty"`
	OriginalSize int    `json:"original_size"`
	Truncated    bool   `json:"truncated,omitempty"`
	// Shortened reports whether field names use the short form.
	Shortened bool `json:"shortened,omitempty"`
}

// Compressed reports whether Data is compressed.
func (p Payload) Compressed() bool { return p.Encoding != "" }

// Stats summarizes optimizer activity since creation.
type Stats struct {
	Payloads   int64   `json:"payloads"`
	Compressed int64   `json:"compressed"`
	Truncated  int64   `json:"truncated"`
	BytesIn    int64   `json:"bytes_in"`
	BytesOut   int64   `json:"bytes_out"`
	Ratio      float64 `json:"ratio"`
}

// Optimizer prepares payloads. It is safe for concurrent use.
type Optimizer struct {
	cfg Config
	enc *zstd.Encoder
	dec *zstd.Decoder

	payloads   atomic.Int64
	compressed atomic.Int64
	truncated  atomic.Int64
	bytesIn    atomic.Int64
	bytesOut   atomic.Int64
}

// New builds an optimizer. Zero config fields take the defaults.
func New(cfg Config) (*Optimizer, error) {
	def := DefaultConfig()
	if cfg.MinSaving == 0 {
		cfg.MinSaving = def.MinSaving
	}
	if cfg.MinSize == 0 {
		cfg.MinSize = def.MinSize
	}
	if cfg.Limits == nil {
		cfg.Limits = def.Limits
	}
	if cfg.MinSaving < 0 || cfg.MinSaving >= 1 {
		return nil, fmt.Errorf("%w: min saving must be in [0, 1), got %v", ErrInvalidConfig, cfg.MinSaving)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	return &Optimizer{cfg: cfg, enc: enc, dec: dec}, nil
}

// Close releases the codec resources.
func (o *Optimizer) Close() error {
	o.dec.Close()
	return o.enc.Close()
}

// Optimize encodes msg for channel. Unknown channels are not truncated.
func (o *Optimizer) Optimize(msg notify.Message, channel string) (Payload, error) {
	msg, truncated := o.truncate(msg, o.cfg.Limits[channel])

	fields := map[string]any{
		"id":       msg.ID,
		"user_id":  msg.UserID,
		"type":     msg.Type,
		"title":    msg.Title,
		"body":     msg.Body,
		"data":     msg.Data,
		"priority": int(msg.Priority),
	}
	if !msg.CreatedAt.IsZero() {
		fields["created_at"] = msg.CreatedAt.UTC().Format(time.RFC3339Nano)
	}

	raw, err := json.Marshal(Shorten(fields))
	if err != nil {
		return Payload{}, errors.Join(ErrEncode, err)
	}

	p := Payload{Data: raw, OriginalSize: len(raw), Truncated: truncated, Shortened: true}
	if len(raw) >= o.cfg.MinSize {
		packed := o.enc.EncodeAll(raw, make([]byte, 0, len(raw)))
		if saved := 1 - float64(len(packed))/float64(len(raw)); saved >= o.cfg.MinSaving {
			p.Data = packed
			p.Encoding = EncodingZstd
		}
	}

	o.payloads.Add(1)
	o.bytesIn.Add(int64(len(raw)))
	o.bytesOut.Add(int64(len(p.Data)))
	if p.Compressed() {
		o.compressed.Add(1)
	}
	if truncated {
		o.truncated.Add(1)
	}
	return p, nil
}

// Decode restores the message carried by p. Truncated text stays truncated.
func (o *Optimizer) Decode(p Payload) (notify.Message, error) {
	raw := p.Data
	switch p.Encoding {
	case "":
	case EncodingZstd:
		var err error
		raw, err = o.dec.DecodeAll(p.Data, nil)
		if err != nil {
			return notify.Message{}, errors.Join(ErrDecode, err)
		}
	default:
		return notify.Message{}, fmt.Errorf("%w: %q", ErrUnknownEncoder, p.Encoding)
	}

	var fields map[string]any
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	if err := d.Decode(&fields); err != nil {
		return notify.Message{}, errors.Join(ErrDecode, err)
	}

	expanded, err := json.Marshal(Expand(fields))
	if err != nil {
		return notify.Message{}, errors.Join(ErrDecode, err)
	}
	var msg notify.Message
	if err := json.Unmarshal(expanded, &msg); err != nil {
		return notify.Message{}, errors.Join(ErrDecode, err)
	}
	return msg, nil
}

// Stats returns cumulative counters.
func (o *Optimizer) Stats() Stats {
	s := Stats{
		Payloads:   o.payloads.Load(),
		Compressed: o.compressed.Load(),
		Truncated:  o.truncated.Load(),
		BytesIn:    o.bytesIn.Load(),
		BytesOut:   o.bytesOut.Load(),
	}
	if s.BytesIn > 0 {
		s.Ratio = float64(s.BytesOut) / float64(s.BytesIn)
	}
	return s
}

// truncate fits title and body into limit runes. The title is kept whole
// when it fits; the body gets whatever remains.
func (o *Optimizer) truncate(msg notify.Message, limit int) (notify.Message, bool) {
	if limit <= 0 {
		return msg, false
	}
	titleLen := utf8.RuneCountInString(msg.Title)
	if titleLen+utf8.RuneCountInString(msg.Body) <= limit {
		return msg, false
	}
	if titleLen >= limit {
		msg.Title, _ = Truncate(msg.Title, limit)
		msg.Body = ""
		return msg, true
	}
	msg.Body, _ = Truncate(msg.Body, limit-titleLen)
	return msg, true
}
