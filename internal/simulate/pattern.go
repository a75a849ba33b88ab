// Package simulate implements the notification simulation engine: the
// recipient pattern table, the per-event payload builder, and the
// dispatcher that replays lifecycle notifications to a callback URL.
package simulate

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EventKind is one simulated stage of an outbound message's fate. Values
// match the eventType strings SES publishes.
type EventKind string

const (
	EventSend             EventKind = "Send"
	EventDelivery         EventKind = "Delivery"
	EventBounce           EventKind = "Bounce"
	EventComplaint        EventKind = "Complaint"
	EventReject           EventKind = "Reject"
	EventOpen             EventKind = "Open"
	EventClick            EventKind = "Click"
	EventDeliveryDelay    EventKind = "DeliveryDelay"
	EventRenderingFailure EventKind = "Rendering Failure"
)

// SoftBounceAddress is the one recipient whose bounce is reported as
// Transient instead of Permanent.
const SoftBounceAddress = "softbounced@test.com"

var validKinds = map[EventKind]bool{
	EventSend:             true,
	EventDelivery:         true,
	EventBounce:           true,
	EventComplaint:        true,
	EventReject:           true,
	EventOpen:             true,
	EventClick:            true,
	EventDeliveryDelay:    true,
	EventRenderingFailure: true,
}

// defaultSequence fires for any recipient without a registered pattern.
var defaultSequence = []EventKind{EventSend, EventDelivery}

// PatternTable maps lower-cased recipient addresses to the ordered event
// sequence to simulate for them. Matching is exact on the full address;
// there is no wildcard or domain-level matching.
type PatternTable struct {
	patterns map[string][]EventKind
}

// NewPatternTable returns the table with the built-in test recipients.
func NewPatternTable() *PatternTable {
	return &PatternTable{
		patterns: map[string][]EventKind{
			"delivered@test.com":   {EventSend, EventDelivery},
			"bounced@test.com":     {EventSend, EventBounce},
			SoftBounceAddress:      {EventSend, EventBounce},
			"complained@test.com":  {EventSend, EventDelivery, EventComplaint},
			"rejected@test.com":    {EventSend, EventReject},
			"opened@test.com":      {EventSend, EventDelivery, EventOpen},
			"clicked@test.com":     {EventSend, EventDelivery, EventClick},
			"delayed@test.com":     {EventSend, EventDeliveryDelay},
			"renderfail@test.com":  {EventSend, EventRenderingFailure},
		},
	}
}

// Lookup returns the event sequence for the given recipient, falling back
// to [Send, Delivery] for unregistered addresses. Matching is
// case-insensitive.
func (t *PatternTable) Lookup(recipient string) []EventKind {
	if seq, ok := t.patterns[strings.ToLower(recipient)]; ok {
		out := make([]EventKind, len(seq))
		copy(out, seq)
		return out
	}
	out := make([]EventKind, len(defaultSequence))
	copy(out, defaultSequence)
	return out
}

// LoadFile merges patterns from a YAML file into the table. The file maps
// recipient addresses to lists of event-kind names:
//
//	vip@example.com:
//	  - Send
//	  - Delivery
//	  - Open
//
// Entries override built-ins for the same address. Unknown kind names are
// a startup error.
func (t *PatternTable) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read patterns file: %w", err)
	}

	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse patterns file: %w", err)
	}

	for addr, names := range raw {
		seq := make([]EventKind, 0, len(names))
		for _, name := range names {
			kind := EventKind(name)
			if !validKinds[kind] {
				return fmt.Errorf("patterns file: unknown event kind %q for %s", name, addr)
			}
			seq = append(seq, kind)
		}
		t.patterns[strings.ToLower(addr)] = seq
	}
	return nil
}
