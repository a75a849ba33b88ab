// Package sns implements the pub/sub control-plane emulator: form-encoded
// SNS actions answered with protocol-shaped XML, plus the one-time
// subscription-confirmation callback.
package sns

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wondertwin-ai/twin-ses/internal/twincore"
)

const (
	xmlns     = "http://sns.amazonaws.com/doc/2010-03-31/"
	arnPrefix = "arn:aws:sns:us-east-1:012345678901:"
)

// Handler answers SNS control-plane actions. No topic or subscription
// registry exists: identifiers are synthesized per request.
type Handler struct {
	logger *slog.Logger
	client *http.Client
}

// NewHandler creates a new SNS handler.
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		client: &http.Client{},
	}
}

// Routes mounts the SNS endpoint.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/sns", h.HandleAction)
	r.Post("/api/sns/", h.HandleAction)
}

type responseMetadata struct {
	RequestID string `xml:"RequestId"`
}

type createTopicResponse struct {
	XMLName  xml.Name `xml:"CreateTopicResponse"`
	Xmlns    string   `xml:"xmlns,attr"`
	Result   struct {
		TopicArn string `xml:"TopicArn"`
	} `xml:"CreateTopicResult"`
	Metadata responseMetadata `xml:"ResponseMetadata"`
}

type subscribeResponse struct {
	XMLName  xml.Name `xml:"SubscribeResponse"`
	Xmlns    string   `xml:"xmlns,attr"`
	Result   struct {
		SubscriptionArn string `xml:"SubscriptionArn"`
	} `xml:"SubscribeResult"`
	Metadata responseMetadata `xml:"ResponseMetadata"`
}

type publishResponse struct {
	XMLName  xml.Name `xml:"PublishResponse"`
	Xmlns    string   `xml:"xmlns,attr"`
	Result   struct {
		MessageID string `xml:"MessageId"`
	} `xml:"PublishResult"`
	Metadata responseMetadata `xml:"ResponseMetadata"`
}

type deleteTopicResponse struct {
	XMLName  xml.Name         `xml:"DeleteTopicResponse"`
	Xmlns    string           `xml:"xmlns,attr"`
	Metadata responseMetadata `xml:"ResponseMetadata"`
}

type errorResponse struct {
	XMLName xml.Name `xml:"ErrorResponse"`
	Xmlns   string   `xml:"xmlns,attr"`
	Error   struct {
		Type    string `xml:"Type"`
		Code    string `xml:"Code"`
		Message string `xml:"Message"`
	} `xml:"Error"`
	RequestID string `xml:"RequestId"`
}

// HandleAction handles POST /api/sns/: form-encoded requests dispatched on
// the Action field.
func (h *Handler) HandleAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, "MalformedQueryString", "unable to parse form data: "+err.Error())
		return
	}

	action := r.FormValue("Action")
	switch action {
	case "CreateTopic":
		h.createTopic(w, r.FormValue("Name"))
	case "Subscribe":
		h.subscribe(w, r.FormValue("TopicArn"), r.FormValue("Endpoint"))
	case "Publish":
		h.publish(w)
	case "DeleteTopic":
		h.deleteTopic(w)
	case "":
		h.writeError(w, "MissingAction", "no Action parameter in request")
	default:
		h.writeError(w, "InvalidAction", fmt.Sprintf("unrecognized action %q", action))
	}
}

func (h *Handler) createTopic(w http.ResponseWriter, name string) {
	resp := createTopicResponse{Xmlns: xmlns, Metadata: responseMetadata{RequestID: uuid.NewString()}}
	resp.Result.TopicArn = arnPrefix + name
	h.writeXML(w, http.StatusOK, resp)
}

func (h *Handler) subscribe(w http.ResponseWriter, topicArn, endpoint string) {
	resp := subscribeResponse{Xmlns: xmlns, Metadata: responseMetadata{RequestID: uuid.NewString()}}
	resp.Result.SubscriptionArn = topicArn + ":" + uuid.NewString()

	if endpoint != "" {
		// One-time confirmation callback, unawaited; the caller never
		// observes its outcome.
		go h.confirmSubscription(endpoint, topicArn)
	}

	h.writeXML(w, http.StatusOK, resp)
}

func (h *Handler) publish(w http.ResponseWriter) {
	resp := publishResponse{Xmlns: xmlns, Metadata: responseMetadata{RequestID: uuid.NewString()}}
	resp.Result.MessageID = uuid.NewString()
	h.writeXML(w, http.StatusOK, resp)
}

func (h *Handler) deleteTopic(w http.ResponseWriter) {
	resp := deleteTopicResponse{Xmlns: xmlns, Metadata: responseMetadata{RequestID: uuid.NewString()}}
	h.writeXML(w, http.StatusOK, resp)
}

// confirmSubscription POSTs a subscription-confirmation envelope to the
// subscriber's endpoint. Failures are logged and swallowed.
func (h *Handler) confirmSubscription(endpoint, topicArn string) {
	payload, err := json.Marshal(map[string]string{
		"Type":         "SubscriptionConfirmation",
		"TopicArn":     topicArn,
		"SubscribeURL": fmt.Sprintf("https://sns.us-east-1.amazonaws.com/?Action=ConfirmSubscription&TopicArn=%s&Token=%s", topicArn, uuid.NewString()),
	})
	if err != nil {
		h.logger.Error("marshal subscription confirmation", "err", err)
		return
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		h.logger.Warn("create subscription confirmation request", "endpoint", endpoint, "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("subscription confirmation delivery failed", "endpoint", endpoint, "err", err)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.logger.Warn("subscription confirmation returned non-success status",
			"endpoint", endpoint, "status", resp.StatusCode)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, code, message string) {
	resp := errorResponse{Xmlns: xmlns, RequestID: uuid.NewString()}
	resp.Error.Type = "Sender"
	resp.Error.Code = code
	resp.Error.Message = message
	h.writeXML(w, http.StatusBadRequest, resp)
}

func (h *Handler) writeXML(w http.ResponseWriter, status int, v any) {
	body, err := xml.Marshal(v)
	if err != nil {
		twincore.Error(w, http.StatusInternalServerError, "encode response: "+err.Error())
		return
	}
	twincore.XML(w, status, append([]byte(xml.Header), body...))
}
