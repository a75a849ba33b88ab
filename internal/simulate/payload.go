package simulate

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wondertwin-ai/twin-ses/internal/store"
)

// Fixed values used across simulated events. None of them carry meaning
// beyond being shaped like the real thing.
const (
	SourceAddress  = "sender@example.com"
	sourceArn      = "arn:aws:ses:us-east-1:012345678901:identity/example.com"
	sendingAccount = "012345678901"
	smtpOKResponse = "250 2.6.0 Message received"
	reportingMTA   = "dns; twin-ses.local"
	placeholderIP  = "127.0.0.1"
	placeholderUA  = "Mozilla/5.0 (compatible; twin-ses simulator)"
	clickLink      = "https://example.com/click"
	rejectReason   = "Bad content"
	delayType      = "TransientCommunicationFailure"

	processingMillis = 714
)

// sesTimeLayout is the millisecond ISO-8601 format SES uses in event payloads.
const sesTimeLayout = "2006-01-02T15:04:05.000Z"

// Mail carries the fields common to every event kind.
type Mail struct {
	Timestamp        string              `json:"timestamp"`
	Source           string              `json:"source"`
	SourceArn        string              `json:"sourceArn"`
	SendingAccountID string              `json:"sendingAccountId"`
	MessageID        string              `json:"messageId"`
	Destination      []string            `json:"destination"`
	HeadersTruncated bool                `json:"headersTruncated"`
	Headers          []Header            `json:"headers"`
	CommonHeaders    map[string]any      `json:"commonHeaders"`
	Tags             map[string][]string `json:"tags"`
}

// Header is one captured message header.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Recipient wraps an address in the list shapes SES uses.
type Recipient struct {
	EmailAddress string `json:"emailAddress"`
}

// DeliveryRecord is the kind-specific block of a Delivery event.
type DeliveryRecord struct {
	Timestamp            string   `json:"timestamp"`
	ProcessingTimeMillis int      `json:"processingTimeMillis"`
	Recipients           []string `json:"recipients"`
	SMTPResponse         string   `json:"smtpResponse"`
	ReportingMTA         string   `json:"reportingMTA"`
}

// BounceRecord is the kind-specific block of a Bounce event.
type BounceRecord struct {
	BounceType        string      `json:"bounceType"`
	BounceSubType     string      `json:"bounceSubType"`
	BouncedRecipients []Recipient `json:"bouncedRecipients"`
	Timestamp         string      `json:"timestamp"`
	FeedbackID        string      `json:"feedbackId"`
	ReportingMTA      string      `json:"reportingMTA"`
}

// ComplaintRecord is the kind-specific block of a Complaint event.
type ComplaintRecord struct {
	ComplainedRecipients  []Recipient `json:"complainedRecipients"`
	Timestamp             string      `json:"timestamp"`
	FeedbackID            string      `json:"feedbackId"`
	ComplaintFeedbackType string      `json:"complaintFeedbackType"`
	UserAgent             string      `json:"userAgent"`
}

// RejectRecord is the kind-specific block of a Reject event.
type RejectRecord struct {
	Reason string `json:"reason"`
}

// OpenRecord is the kind-specific block of an Open event.
type OpenRecord struct {
	IPAddress string `json:"ipAddress"`
	Timestamp string `json:"timestamp"`
	UserAgent string `json:"userAgent"`
}

// ClickRecord is the kind-specific block of a Click event.
type ClickRecord struct {
	IPAddress string              `json:"ipAddress"`
	Timestamp string              `json:"timestamp"`
	UserAgent string              `json:"userAgent"`
	Link      string              `json:"link"`
	LinkTags  map[string][]string `json:"linkTags"`
}

// DelayRecord is the kind-specific block of a DeliveryDelay event.
type DelayRecord struct {
	DelayType         string      `json:"delayType"`
	ExpirationTime    string      `json:"expirationTime"`
	DelayedRecipients []Recipient `json:"delayedRecipients"`
	Timestamp         string      `json:"timestamp"`
}

// EventBody is one simulated lifecycle event as SES would publish it.
// Exactly one kind-specific block is set, except for Rendering Failure
// which carries only the common fields.
type EventBody struct {
	EventType     string           `json:"eventType"`
	Mail          Mail             `json:"mail"`
	Send          *struct{}        `json:"send,omitempty"`
	Delivery      *DeliveryRecord  `json:"delivery,omitempty"`
	Bounce        *BounceRecord    `json:"bounce,omitempty"`
	Complaint     *ComplaintRecord `json:"complaint,omitempty"`
	Reject        *RejectRecord    `json:"reject,omitempty"`
	Open          *OpenRecord      `json:"open,omitempty"`
	Click         *ClickRecord     `json:"click,omitempty"`
	DeliveryDelay *DelayRecord     `json:"deliveryDelay,omitempty"`
}

// PayloadBuilder constructs event bodies. It performs no I/O; the only
// non-determinism is generated feedback ids and clock reads.
type PayloadBuilder struct {
	clock *store.Clock
}

// NewPayloadBuilder creates a builder reading timestamps from the given clock.
func NewPayloadBuilder(clock *store.Clock) *PayloadBuilder {
	return &PayloadBuilder{clock: clock}
}

// Build constructs the event body for one kind, message, and recipient.
func (b *PayloadBuilder) Build(kind EventKind, messageID, recipient string) EventBody {
	now := b.clock.Now().UTC()
	ts := now.Format(sesTimeLayout)

	body := EventBody{
		EventType: string(kind),
		Mail: Mail{
			Timestamp:        ts,
			Source:           SourceAddress,
			SourceArn:        sourceArn,
			SendingAccountID: sendingAccount,
			MessageID:        messageID,
			Destination:      []string{recipient},
			Headers:          []Header{},
			CommonHeaders:    map[string]any{"from": []string{SourceAddress}, "to": []string{recipient}},
			Tags:             map[string][]string{},
		},
	}

	switch kind {
	case EventSend:
		body.Send = &struct{}{}
	case EventDelivery:
		body.Delivery = &DeliveryRecord{
			Timestamp:            ts,
			ProcessingTimeMillis: processingMillis,
			Recipients:           []string{recipient},
			SMTPResponse:         smtpOKResponse,
			ReportingMTA:         reportingMTA,
		}
	case EventBounce:
		bounceType := "Permanent"
		if strings.EqualFold(recipient, SoftBounceAddress) {
			bounceType = "Transient"
		}
		body.Bounce = &BounceRecord{
			BounceType:        bounceType,
			BounceSubType:     "General",
			BouncedRecipients: []Recipient{{EmailAddress: recipient}},
			Timestamp:         ts,
			FeedbackID:        uuid.NewString(),
			ReportingMTA:      reportingMTA,
		}
	case EventComplaint:
		body.Complaint = &ComplaintRecord{
			ComplainedRecipients:  []Recipient{{EmailAddress: recipient}},
			Timestamp:             ts,
			FeedbackID:            uuid.NewString(),
			ComplaintFeedbackType: "abuse",
			UserAgent:             placeholderUA,
		}
	case EventReject:
		body.Reject = &RejectRecord{Reason: rejectReason}
	case EventOpen:
		body.Open = &OpenRecord{
			IPAddress: placeholderIP,
			Timestamp: ts,
			UserAgent: placeholderUA,
		}
	case EventClick:
		body.Click = &ClickRecord{
			IPAddress: placeholderIP,
			Timestamp: ts,
			UserAgent: placeholderUA,
			Link:      clickLink,
			LinkTags:  map[string][]string{"samplekey": {"samplevalue"}},
		}
	case EventDeliveryDelay:
		body.DeliveryDelay = &DelayRecord{
			DelayType:         delayType,
			ExpirationTime:    now.Add(24 * time.Hour).Format(sesTimeLayout),
			DelayedRecipients: []Recipient{{EmailAddress: recipient}},
			Timestamp:         ts,
		}
	case EventRenderingFailure:
		// No kind-specific block; the generic envelope suffices for now.
	}

	return body
}
