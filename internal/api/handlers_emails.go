package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wondertwin-ai/twin-ses/internal/mailparse"
	"github.com/wondertwin-ai/twin-ses/internal/simulate"
	"github.com/wondertwin-ai/twin-ses/internal/store"
	"github.com/wondertwin-ai/twin-ses/internal/twincore"
)

// sendEmailRequest matches the SES v2 SendEmail request body. Content is
// either Simple (structured) or Raw (full base64-encoded message).
type sendEmailRequest struct {
	FromEmailAddress string             `json:"FromEmailAddress,omitempty"`
	ReplyToAddresses []string           `json:"ReplyToAddresses,omitempty"`
	Destination      *store.Destination `json:"Destination,omitempty"`
	Content          *struct {
		Simple *struct {
			Subject *contentPart `json:"Subject,omitempty"`
			Body    *struct {
				HTML *contentPart `json:"Html,omitempty"`
				Text *contentPart `json:"Text,omitempty"`
			} `json:"Body,omitempty"`
		} `json:"Simple,omitempty"`
		Raw *struct {
			Data string `json:"Data"`
		} `json:"Raw,omitempty"`
	} `json:"Content,omitempty"`
}

type contentPart struct {
	Data    string `json:"Data"`
	Charset string `json:"Charset,omitempty"`
}

// SendEmail handles POST /api/ses/v2/email/outbound-emails.
//
// A message id is assigned and returned as soon as the request decodes;
// recipient extraction, classification, and notification scheduling are
// best-effort and never fail the request.
func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req sendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		twincore.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Destination == nil && (req.Content == nil || req.Content.Raw == nil) {
		twincore.Error(w, http.StatusBadRequest, "request must carry a Destination or raw Content")
		return
	}

	messageID := uuid.NewString()
	h.store.Emails.Set(messageID, h.recordEmail(messageID, req))

	for _, recipient := range h.extractRecipients(req) {
		kinds := h.patterns.Lookup(recipient)
		h.dispatcher.ScheduleSequence(messageID, recipient, kinds)
	}

	twincore.JSON(w, http.StatusOK, map[string]any{
		"MessageId": messageID,
	})
}

// extractRecipients resolves the ordered recipient list: structured
// destinations first, otherwise the raw message's To/Cc/Bcc headers.
// All failures degrade to an empty list.
func (h *Handler) extractRecipients(req sendEmailRequest) []string {
	if req.Destination != nil {
		var out []string
		for _, group := range [][]string{req.Destination.ToAddresses, req.Destination.CcAddresses, req.Destination.BccAddresses} {
			for _, addr := range group {
				out = append(out, strings.ToLower(addr))
			}
		}
		return out
	}

	raw, err := base64.StdEncoding.DecodeString(req.Content.Raw.Data)
	if err != nil {
		h.logger.Warn("raw message is not valid base64, no notifications will fire", "err", err)
		return nil
	}
	recipients, err := mailparse.Recipients(raw)
	if err != nil {
		h.logger.Warn("raw message did not parse, no notifications will fire", "err", err)
		return nil
	}
	return recipients
}

func (h *Handler) recordEmail(messageID string, req sendEmailRequest) store.SentEmail {
	email := store.SentEmail{
		MessageID:   messageID,
		From:        req.FromEmailAddress,
		ReplyTo:     req.ReplyToAddresses,
		Destination: req.Destination,
		At:          h.store.Clock.Now().Unix(),
	}
	if email.From == "" {
		email.From = simulate.SourceAddress
	}
	if req.Content != nil {
		if s := req.Content.Simple; s != nil {
			if s.Subject != nil {
				email.Subject = s.Subject.Data
			}
			if s.Body != nil {
				if s.Body.HTML != nil {
					email.Body.HTML = s.Body.HTML.Data
				}
				if s.Body.Text != nil {
					email.Body.Text = s.Body.Text.Data
				}
			}
		}
		if req.Content.Raw != nil {
			email.Body.Raw = req.Content.Raw.Data
		}
	}
	return email
}

// ListEmails handles GET /api/emails.
func (h *Handler) ListEmails(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, map[string]any{
		"emails":    h.store.Emails.List(),
		"$metadata": map[string]any{"httpStatusCode": 200},
	})
}

// GetAccount handles GET /api/ses/v2/account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, map[string]any{
		"DedicatedIpAutoWarmupEnabled": false,
		"EnforcementStatus":            "HEALTHY",
		"ProductionAccessEnabled":      true,
		"SendingEnabled":               true,
		"SendQuota": map[string]any{
			"Max24HourSend":   200.0,
			"MaxSendRate":     1.0,
			"SentLast24Hours": float64(h.store.Emails.Count()),
		},
		"SuppressionAttributes": map[string]any{
			"SuppressedReasons": []string{},
		},
	})
}

// createEventDestinationRequest matches the SES v2 CreateConfigurationSetEventDestination body.
type createEventDestinationRequest struct {
	EventDestinationName string `json:"EventDestinationName"`
	EventDestination     struct {
		Enabled            bool           `json:"Enabled"`
		MatchingEventTypes []string       `json:"MatchingEventTypes,omitempty"`
		SnsDestination     map[string]any `json:"SnsDestination,omitempty"`
	} `json:"EventDestination"`
}

// CreateEventDestination handles POST /api/ses/v2/email/configuration-sets/{name}/event-destinations.
func (h *Handler) CreateEventDestination(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req createEventDestinationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		twincore.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	set, ok := h.store.ConfigSets.Get(name)
	if !ok {
		set = store.ConfigurationSet{Name: name}
	}
	set.EventDestinations = append(set.EventDestinations, store.EventDestination{
		Name:               req.EventDestinationName,
		Enabled:            req.EventDestination.Enabled,
		MatchingEventTypes: req.EventDestination.MatchingEventTypes,
		SnsDestination:     req.EventDestination.SnsDestination,
	})
	h.store.ConfigSets.Set(name, set)

	twincore.JSON(w, http.StatusOK, map[string]any{})
}
