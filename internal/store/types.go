package store

// DkimAttributes mirrors the SES v2 DkimAttributes shape. Tokens are
// placeholders; the twin never generates real keys.
type DkimAttributes struct {
	SigningEnabled          bool     `json:"SigningEnabled"`
	Status                  string   `json:"Status"`
	Tokens                  []string `json:"Tokens,omitempty"`
	SigningAttributesOrigin string   `json:"SigningAttributesOrigin,omitempty"`
}

// Identity is a registered (or synthesized) sending identity.
type Identity struct {
	IdentityType             string         `json:"IdentityType"`
	IdentityName             string         `json:"IdentityName"`
	VerifiedForSendingStatus bool           `json:"VerifiedForSendingStatus"`
	DkimAttributes           DkimAttributes `json:"DkimAttributes"`
	MailFromDomain           string         `json:"MailFromDomain,omitempty"`
}

// Destination is the structured recipient block of a send request.
type Destination struct {
	ToAddresses  []string `json:"ToAddresses,omitempty"`
	CcAddresses  []string `json:"CcAddresses,omitempty"`
	BccAddresses []string `json:"BccAddresses,omitempty"`
}

// SentEmail records one accepted outbound send. Records are append-only
// and retained for the process lifetime.
type SentEmail struct {
	MessageID   string       `json:"messageId"`
	From        string       `json:"from"`
	ReplyTo     []string     `json:"replyTo,omitempty"`
	Destination *Destination `json:"destination,omitempty"`
	Subject     string       `json:"subject,omitempty"`
	Body        EmailBody    `json:"body"`
	At          int64        `json:"at"`
}

// EmailBody is the captured message content of a sent email.
type EmailBody struct {
	HTML string `json:"html,omitempty"`
	Text string `json:"text,omitempty"`
	Raw  string `json:"raw,omitempty"` // base64 as received
}

// EventDestination is one entry appended to a configuration set.
type EventDestination struct {
	Name               string         `json:"Name"`
	Enabled            bool           `json:"Enabled"`
	MatchingEventTypes []string       `json:"MatchingEventTypes,omitempty"`
	SnsDestination     map[string]any `json:"SnsDestination,omitempty"`
}

// ConfigurationSet holds the event destinations registered under one name.
type ConfigurationSet struct {
	Name              string             `json:"Name"`
	EventDestinations []EventDestination `json:"EventDestinations"`
}
