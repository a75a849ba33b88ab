package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wondertwin-ai/twin-ses/internal/store"
)

// Envelope is the SNS-shaped notification wrapper POSTed to the callback
// URL. Signature fields are placeholders; nothing is really signed.
type Envelope struct {
	Type             string `json:"Type"`
	MessageID        string `json:"MessageId"`
	TopicArn         string `json:"TopicArn"`
	Message          string `json:"Message"`
	Timestamp        string `json:"Timestamp"`
	SignatureVersion string `json:"SignatureVersion"`
	Signature        string `json:"Signature"`
	SigningCertURL   string `json:"SigningCertURL"`
}

const (
	envelopeTopicArn     = "arn:aws:sns:us-east-1:012345678901:ses-events"
	placeholderSignature = "EXAMPLEpH+DcEwjAPg8O9mY8dReBSwksfg2S7WKQcikcNKWLQjwu6A4VbeS0QHVCkhRS7fUQvi2egU3N858fiTDN6bkkOxYDVrY0Ad8L10Hs3zH81mtnPk5uvvolIC1CXGu43obcgFxeL3khZl8d9621uV09DzPQ="
	placeholderCertURL   = "https://sns.us-east-1.amazonaws.com/SimpleNotificationService-0000000000000000000000.pem"
)

// Delivery records one attempted callback delivery.
type Delivery struct {
	NotificationID string    `json:"notification_id"`
	EventType      string    `json:"event_type"`
	Recipient      string    `json:"recipient"`
	URL            string    `json:"url"`
	StatusCode     int       `json:"status_code"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Dispatcher schedules and delivers simulated notifications to a single
// configured callback URL. Scheduling is fire-and-forget: callers never
// wait for, observe, or cancel a delivery. Failed deliveries are logged
// and recorded; there are no retries.
type Dispatcher struct {
	mu         sync.RWMutex
	url        string
	builder    *PayloadBuilder
	logger     *slog.Logger
	client     *http.Client
	interval   time.Duration
	clock      *store.Clock
	deliveries []Delivery
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	URL      string         // callback URL; empty disables delivery
	Logger   *slog.Logger
	Clock    *store.Clock
	Interval time.Duration // delay between consecutive events, default 1s
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Interval == 0 {
		cfg.Interval = 1 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = store.NewClock()
	}

	return &Dispatcher{
		url:      cfg.URL,
		builder:  NewPayloadBuilder(cfg.Clock),
		logger:   cfg.Logger,
		client:   &http.Client{},
		interval: cfg.Interval,
		clock:    cfg.Clock,
	}
}

// ScheduleSequence schedules one delivery per event kind for a recipient:
// event i fires i×interval after the call. Sequences for different
// recipients run independently; the delay bounds dispatch start, not
// completion.
func (d *Dispatcher) ScheduleSequence(messageID, recipient string, kinds []EventKind) {
	for i, kind := range kinds {
		k := kind
		time.AfterFunc(time.Duration(i)*d.interval, func() {
			d.deliver(k, messageID, recipient)
		})
	}
}

func (d *Dispatcher) deliver(kind EventKind, messageID, recipient string) {
	d.mu.RLock()
	url := d.url
	d.mu.RUnlock()

	if url == "" {
		d.logger.Debug("no callback URL configured, skipping delivery",
			"event_type", string(kind), "message_id", messageID)
		return
	}

	body := d.builder.Build(kind, messageID, recipient)
	message, err := json.Marshal(body)
	if err != nil {
		d.logger.Error("marshal event body", "err", err)
		return
	}

	env := Envelope{
		Type:             "Notification",
		MessageID:        uuid.NewString(),
		TopicArn:         envelopeTopicArn,
		Message:          string(message),
		Timestamp:        d.clock.Now().UTC().Format(sesTimeLayout),
		SignatureVersion: "1",
		Signature:        placeholderSignature,
		SigningCertURL:   placeholderCertURL,
	}

	record := Delivery{
		NotificationID: env.MessageID,
		EventType:      string(kind),
		Recipient:      recipient,
		URL:            url,
		Timestamp:      time.Now(),
	}

	payload, err := json.Marshal(env)
	if err != nil {
		d.logger.Error("marshal envelope", "err", err)
		return
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		d.logger.Error("create callback request", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		record.Error = err.Error()
		d.logger.Warn("callback delivery failed",
			"event_type", string(kind), "message_id", messageID, "err", err)
	} else {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		record.StatusCode = resp.StatusCode
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			d.logger.Warn("callback returned non-success status",
				"event_type", string(kind), "message_id", messageID, "status", resp.StatusCode)
		}
	}

	d.mu.Lock()
	d.deliveries = append(d.deliveries, record)
	d.mu.Unlock()
}

// SetURL updates the callback URL.
func (d *Dispatcher) SetURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
}

// Deliveries returns all delivery records.
func (d *Dispatcher) Deliveries() []Delivery {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Delivery, len(d.deliveries))
	copy(out, d.deliveries)
	return out
}

// Reset clears the delivery log.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = d.deliveries[:0]
}
