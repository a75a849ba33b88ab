package api_test

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/wondertwin-ai/twin-ses/internal/admin"
	"github.com/wondertwin-ai/twin-ses/internal/api"
	"github.com/wondertwin-ai/twin-ses/internal/simulate"
	"github.com/wondertwin-ai/twin-ses/internal/store"
	"github.com/wondertwin-ai/twin-ses/internal/testutil"
	"github.com/wondertwin-ai/twin-ses/internal/twincore"
)

// capture collects notification envelopes POSTed to a test callback server.
type capture struct {
	mu        sync.Mutex
	envelopes []simulate.Envelope
	srv       *httptest.Server
}

func newCapture(t *testing.T) *capture {
	t.Helper()
	c := &capture{}
	c.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var env simulate.Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			t.Errorf("unmarshal envelope: %v", err)
		}
		c.mu.Lock()
		c.envelopes = append(c.envelopes, env)
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(c.srv.Close)
	return c
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.envelopes)
}

func (c *capture) all() []simulate.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]simulate.Envelope, len(c.envelopes))
	copy(out, c.envelopes)
	return out
}

func setupTwin(t *testing.T, webhookURL string) *testutil.TwinClient {
	t.Helper()
	memStore := store.NewMemoryStore()
	cfg := &twincore.Config{Name: "twin-ses-test"}
	twin := twincore.New(cfg)

	dispatcher := simulate.NewDispatcher(simulate.DispatcherConfig{
		URL:      webhookURL,
		Logger:   twin.Logger,
		Clock:    memStore.Clock,
		Interval: 10 * time.Millisecond,
	})

	handler := api.NewHandler(memStore, simulate.NewPatternTable(), dispatcher, twin.Middleware(), twin.Logger)
	handler.Routes(twin.Router)
	adminHandler := admin.NewHandler(memStore, dispatcher, twin.Middleware(), memStore.Clock)
	adminHandler.Routes(twin.Router)

	srv := httptest.NewServer(twin.Router)
	t.Cleanup(srv.Close)
	return testutil.NewTwinClient(t, srv)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

// --- Send endpoint ---

func TestSendEmailReturnsMessageID(t *testing.T) {
	tc := setupTwin(t, "")

	resp := tc.Post("/api/ses/v2/email/outbound-emails", map[string]any{
		"FromEmailAddress": "sender@example.com",
		"Destination":      map[string]any{"ToAddresses": []string{"someone@example.com"}},
		"Content": map[string]any{
			"Simple": map[string]any{
				"Subject": map[string]any{"Data": "Hi"},
				"Body":    map[string]any{"Text": map[string]any{"Data": "hello"}},
			},
		},
	})
	resp.AssertStatus(200)

	m := resp.JSONMap()
	if id, ok := m["MessageId"].(string); !ok || id == "" {
		t.Fatalf("expected MessageId in response, got %v", m)
	}
}

func TestSendEmailMalformedBody(t *testing.T) {
	tc := setupTwin(t, "")

	resp := tc.Post("/api/ses/v2/email/outbound-emails", nil)
	resp.AssertStatus(400)

	// Nothing was recorded: no message id was ever assigned.
	list := tc.Get("/api/emails").JSONMap()
	if emails, ok := list["emails"].([]any); ok && len(emails) != 0 {
		t.Errorf("expected no recorded emails, got %d", len(emails))
	}
}

func TestSendEmailWithoutDestinationOrRaw(t *testing.T) {
	tc := setupTwin(t, "")

	resp := tc.Post("/api/ses/v2/email/outbound-emails", map[string]any{
		"FromEmailAddress": "sender@example.com",
	})
	resp.AssertStatus(400)
}

func TestSendEmailRawParseFailureStillSucceeds(t *testing.T) {
	tc := setupTwin(t, "")

	resp := tc.Post("/api/ses/v2/email/outbound-emails", map[string]any{
		"Content": map[string]any{
			"Raw": map[string]any{"Data": "!!!not-base64!!!"},
		},
	})
	resp.AssertStatus(200)
	if id, ok := resp.JSONMap()["MessageId"].(string); !ok || id == "" {
		t.Fatal("expected MessageId even when raw content does not decode")
	}
}

func TestSendEmailRawRecipients(t *testing.T) {
	rec := newCapture(t)
	tc := setupTwin(t, rec.srv.URL)

	raw := "To: Clicked <clicked@test.com>\r\nSubject: raw\r\n\r\nhello\r\n"
	resp := tc.Post("/api/ses/v2/email/outbound-emails", map[string]any{
		"Content": map[string]any{
			"Raw": map[string]any{"Data": base64.StdEncoding.EncodeToString([]byte(raw))},
		},
	})
	resp.AssertStatus(200)

	waitFor(t, 2*time.Second, func() bool { return rec.count() == 3 })
}

func TestListEmailsReturnsRecordsInSendOrder(t *testing.T) {
	tc := setupTwin(t, "")

	var ids []string
	for i := 0; i < 3; i++ {
		resp := tc.Post("/api/ses/v2/email/outbound-emails", map[string]any{
			"Destination": map[string]any{"ToAddresses": []string{"someone@example.com"}},
		})
		resp.AssertStatus(200)
		ids = append(ids, resp.JSONMap()["MessageId"].(string))
	}

	resp := tc.Get("/api/emails")
	resp.AssertStatus(200)

	var body struct {
		Emails []store.SentEmail `json:"emails"`
	}
	resp.JSON(&body)

	if len(body.Emails) != 3 {
		t.Fatalf("expected 3 emails, got %d", len(body.Emails))
	}
	for i, email := range body.Emails {
		if email.MessageID != ids[i] {
			t.Errorf("email %d: expected message id %s, got %s", i, ids[i], email.MessageID)
		}
	}
}

// --- Scenario: clicked recipient gets Send, Delivery, Click ---

func TestClickedRecipientScenario(t *testing.T) {
	rec := newCapture(t)
	tc := setupTwin(t, rec.srv.URL)

	resp := tc.Post("/api/ses/v2/email/outbound-emails", map[string]any{
		"Destination": map[string]any{"ToAddresses": []string{"clicked@test.com"}},
	})
	resp.AssertStatus(200)
	messageID := resp.JSONMap()["MessageId"].(string)

	waitFor(t, 2*time.Second, func() bool { return rec.count() == 3 })

	want := []string{"Send", "Delivery", "Click"}
	for i, env := range rec.all() {
		if env.Type != "Notification" {
			t.Errorf("envelope %d: expected Type=Notification, got %s", i, env.Type)
		}
		var body simulate.EventBody
		if err := json.Unmarshal([]byte(env.Message), &body); err != nil {
			t.Fatalf("envelope %d: Message is not JSON: %v", i, err)
		}
		if body.EventType != want[i] {
			t.Errorf("envelope %d: expected eventType %s, got %s", i, want[i], body.EventType)
		}
		if body.Mail.MessageID != messageID {
			t.Errorf("envelope %d: expected mail.messageId %s, got %s", i, messageID, body.Mail.MessageID)
		}
	}
}

func TestRecipientCaseDoesNotChangePattern(t *testing.T) {
	rec := newCapture(t)
	tc := setupTwin(t, rec.srv.URL)

	resp := tc.Post("/api/ses/v2/email/outbound-emails", map[string]any{
		"Destination": map[string]any{"ToAddresses": []string{"Bounced@TEST.com"}},
	})
	resp.AssertStatus(200)

	waitFor(t, 2*time.Second, func() bool { return rec.count() == 2 })

	var last simulate.EventBody
	envs := rec.all()
	if err := json.Unmarshal([]byte(envs[1].Message), &last); err != nil {
		t.Fatal(err)
	}
	if last.EventType != "Bounce" {
		t.Errorf("expected Bounce event, got %s", last.EventType)
	}
	if last.Bounce == nil || last.Bounce.BounceType != "Permanent" {
		t.Errorf("expected Permanent bounce, got %+v", last.Bounce)
	}
}

// --- Identities ---

func TestGetIdentitySynthesizesDefault(t *testing.T) {
	tc := setupTwin(t, "")

	resp := tc.Get("/api/ses/v2/email/identities/unknown.example.com")
	resp.AssertStatus(200)

	m := resp.JSONMap()
	if m["IdentityType"] != "DOMAIN" {
		t.Errorf("expected IdentityType=DOMAIN, got %v", m["IdentityType"])
	}
	if m["VerifiedForSendingStatus"] != true {
		t.Errorf("expected identity to be verified, got %v", m["VerifiedForSendingStatus"])
	}
}

func TestCreateAndGetIdentity(t *testing.T) {
	tc := setupTwin(t, "")

	resp := tc.Post("/api/ses/v2/email/identities", map[string]any{
		"EmailIdentity": "user@example.com",
	})
	resp.AssertStatus(200)

	m := resp.JSONMap()
	if m["VerificationStatus"] != "SUCCESS" {
		t.Errorf("expected VerificationStatus=SUCCESS, got %v", m["VerificationStatus"])
	}
	if _, ok := m["DkimAttributes"].(map[string]any); !ok {
		t.Errorf("expected DkimAttributes in response, got %v", m)
	}

	resp = tc.Get("/api/ses/v2/email/identities/user@example.com")
	resp.AssertStatus(200)
	if got := resp.JSONMap()["IdentityType"]; got != "EMAIL_ADDRESS" {
		t.Errorf("expected IdentityType=EMAIL_ADDRESS, got %v", got)
	}
}

func TestCreateIdentityMissingName(t *testing.T) {
	tc := setupTwin(t, "")

	tc.Post("/api/ses/v2/email/identities", map[string]any{}).AssertStatus(400)
}

func TestDeleteIdentity(t *testing.T) {
	tc := setupTwin(t, "")

	tc.Post("/api/ses/v2/email/identities", map[string]any{"EmailIdentity": "gone@example.com"}).AssertStatus(200)
	tc.Delete("/api/ses/v2/email/identities/gone@example.com").AssertStatus(200)

	// mail-from mutation now 404s since the identity is unregistered.
	resp := tc.Put("/api/ses/v2/email/identities/gone@example.com/mail-from", map[string]any{
		"MailFromDomain": "mail.example.com",
	})
	resp.AssertStatus(404)
	resp.AssertBodyContains("error")
}

func TestPutMailFrom(t *testing.T) {
	tc := setupTwin(t, "")

	tc.Post("/api/ses/v2/email/identities", map[string]any{"EmailIdentity": "example.com"}).AssertStatus(200)

	resp := tc.Put("/api/ses/v2/email/identities/example.com/mail-from", map[string]any{
		"MailFromDomain": "mail.example.com",
	})
	resp.AssertStatus(200)

	var body struct {
		Metadata struct {
			HTTPStatusCode int `json:"httpStatusCode"`
		} `json:"$metadata"`
	}
	resp.JSON(&body)
	if body.Metadata.HTTPStatusCode != 200 {
		t.Errorf("expected $metadata.httpStatusCode=200, got %d", body.Metadata.HTTPStatusCode)
	}
}

// --- Account & configuration sets ---

func TestGetAccountTracksSentCount(t *testing.T) {
	tc := setupTwin(t, "")

	for i := 0; i < 2; i++ {
		tc.Post("/api/ses/v2/email/outbound-emails", map[string]any{
			"Destination": map[string]any{"ToAddresses": []string{"someone@example.com"}},
		}).AssertStatus(200)
	}

	resp := tc.Get("/api/ses/v2/account")
	resp.AssertStatus(200)

	var body struct {
		EnforcementStatus string `json:"EnforcementStatus"`
		SendQuota         struct {
			SentLast24Hours float64 `json:"SentLast24Hours"`
		} `json:"SendQuota"`
	}
	resp.JSON(&body)
	if body.EnforcementStatus != "HEALTHY" {
		t.Errorf("expected EnforcementStatus=HEALTHY, got %s", body.EnforcementStatus)
	}
	if body.SendQuota.SentLast24Hours != 2 {
		t.Errorf("expected SentLast24Hours=2, got %v", body.SendQuota.SentLast24Hours)
	}
}

func TestCreateEventDestination(t *testing.T) {
	tc := setupTwin(t, "")

	resp := tc.Post("/api/ses/v2/email/configuration-sets/my-set/event-destinations", map[string]any{
		"EventDestinationName": "to-sns",
		"EventDestination": map[string]any{
			"Enabled":            true,
			"MatchingEventTypes": []string{"BOUNCE", "COMPLAINT"},
		},
	})
	resp.AssertStatus(200)

	state := tc.Get("/admin/state").JSONMap()
	sets, ok := state["configuration_sets"].(map[string]any)
	if !ok {
		t.Fatalf("expected configuration_sets in state, got %v", state)
	}
	if _, ok := sets["my-set"]; !ok {
		t.Errorf("expected my-set in configuration sets, got %v", sets)
	}
}

// --- Admin ---

func TestAdminDeliveriesExposesDeliveryLog(t *testing.T) {
	rec := newCapture(t)
	tc := setupTwin(t, rec.srv.URL)

	tc.Post("/api/ses/v2/email/outbound-emails", map[string]any{
		"Destination": map[string]any{"ToAddresses": []string{"delivered@test.com"}},
	}).AssertStatus(200)

	waitFor(t, 2*time.Second, func() bool { return rec.count() == 2 })

	var body struct {
		Deliveries []simulate.Delivery `json:"deliveries"`
	}
	resp := tc.Get("/admin/deliveries")
	resp.AssertStatus(200)
	resp.JSON(&body)

	if len(body.Deliveries) != 2 {
		t.Fatalf("expected 2 delivery records, got %d", len(body.Deliveries))
	}
	if body.Deliveries[0].EventType != "Send" || body.Deliveries[1].EventType != "Delivery" {
		t.Errorf("unexpected delivery event types: %+v", body.Deliveries)
	}
}

func TestAdminSetWebhookEnablesDelivery(t *testing.T) {
	rec := newCapture(t)
	tc := setupTwin(t, "")

	tc.Post("/admin/webhook", map[string]string{"url": rec.srv.URL}).AssertStatus(200)

	tc.Post("/api/ses/v2/email/outbound-emails", map[string]any{
		"Destination": map[string]any{"ToAddresses": []string{"delivered@test.com"}},
	}).AssertStatus(200)

	waitFor(t, 2*time.Second, func() bool { return rec.count() == 2 })
}

func TestAdminResetClearsState(t *testing.T) {
	tc := setupTwin(t, "")

	tc.Post("/api/ses/v2/email/outbound-emails", map[string]any{
		"Destination": map[string]any{"ToAddresses": []string{"someone@example.com"}},
	}).AssertStatus(200)

	tc.Post("/admin/reset", nil).AssertStatus(200)

	var body struct {
		Emails []store.SentEmail `json:"emails"`
	}
	tc.Get("/api/emails").JSON(&body)
	if len(body.Emails) != 0 {
		t.Errorf("expected empty email log after reset, got %d", len(body.Emails))
	}
}
