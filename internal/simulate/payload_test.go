package simulate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wondertwin-ai/twin-ses/internal/store"
)

func newTestBuilder() *PayloadBuilder {
	return NewPayloadBuilder(store.NewClock())
}

func TestBuildCommonFields(t *testing.T) {
	b := newTestBuilder()

	body := b.Build(EventSend, "msg-1", "someone@example.com")

	assert.Equal(t, "Send", body.EventType)
	assert.Equal(t, "msg-1", body.Mail.MessageID)
	assert.Equal(t, SourceAddress, body.Mail.Source)
	assert.Equal(t, []string{"someone@example.com"}, body.Mail.Destination)

	_, err := time.Parse("2006-01-02T15:04:05.000Z", body.Mail.Timestamp)
	require.NoError(t, err, "timestamp should be millisecond ISO-8601")
}

func TestBuildSendHasNoExtraFields(t *testing.T) {
	body := newTestBuilder().Build(EventSend, "msg-1", "a@example.com")

	require.NotNil(t, body.Send)
	assert.Nil(t, body.Delivery)
	assert.Nil(t, body.Bounce)
}

func TestBuildDelivery(t *testing.T) {
	body := newTestBuilder().Build(EventDelivery, "msg-1", "a@example.com")

	require.NotNil(t, body.Delivery)
	assert.Equal(t, []string{"a@example.com"}, body.Delivery.Recipients)
	assert.Equal(t, "250 2.6.0 Message received", body.Delivery.SMTPResponse)
	assert.Equal(t, processingMillis, body.Delivery.ProcessingTimeMillis)
}

func TestBuildBouncePermanent(t *testing.T) {
	body := newTestBuilder().Build(EventBounce, "msg-1", "bounced@test.com")

	require.NotNil(t, body.Bounce)
	assert.Equal(t, "Permanent", body.Bounce.BounceType)
	assert.Equal(t, "General", body.Bounce.BounceSubType)
	assert.Equal(t, []Recipient{{EmailAddress: "bounced@test.com"}}, body.Bounce.BouncedRecipients)
	assert.NotEmpty(t, body.Bounce.FeedbackID)
}

func TestBuildBounceTransientForSoftBounceAddress(t *testing.T) {
	b := newTestBuilder()

	body := b.Build(EventBounce, "msg-1", SoftBounceAddress)
	require.NotNil(t, body.Bounce)
	assert.Equal(t, "Transient", body.Bounce.BounceType)

	// Case of the literal address must not matter.
	body = b.Build(EventBounce, "msg-1", "SoftBounced@Test.com")
	require.NotNil(t, body.Bounce)
	assert.Equal(t, "Transient", body.Bounce.BounceType)
}

func TestBuildBounceFreshFeedbackIDs(t *testing.T) {
	b := newTestBuilder()

	first := b.Build(EventBounce, "msg-1", "bounced@test.com")
	second := b.Build(EventBounce, "msg-1", "bounced@test.com")
	assert.NotEqual(t, first.Bounce.FeedbackID, second.Bounce.FeedbackID)
}

func TestBuildComplaint(t *testing.T) {
	body := newTestBuilder().Build(EventComplaint, "msg-1", "complained@test.com")

	require.NotNil(t, body.Complaint)
	assert.Equal(t, []Recipient{{EmailAddress: "complained@test.com"}}, body.Complaint.ComplainedRecipients)
	assert.NotEmpty(t, body.Complaint.FeedbackID)
}

func TestBuildReject(t *testing.T) {
	body := newTestBuilder().Build(EventReject, "msg-1", "rejected@test.com")

	require.NotNil(t, body.Reject)
	assert.Equal(t, "Bad content", body.Reject.Reason)
}

func TestBuildOpenAndClick(t *testing.T) {
	b := newTestBuilder()

	open := b.Build(EventOpen, "msg-1", "opened@test.com")
	require.NotNil(t, open.Open)
	assert.NotEmpty(t, open.Open.IPAddress)
	assert.NotEmpty(t, open.Open.UserAgent)

	click := b.Build(EventClick, "msg-1", "clicked@test.com")
	require.NotNil(t, click.Click)
	assert.Equal(t, clickLink, click.Click.Link)
	assert.NotEmpty(t, click.Click.LinkTags)
}

func TestBuildDeliveryDelayExpiresIn24Hours(t *testing.T) {
	body := newTestBuilder().Build(EventDeliveryDelay, "msg-1", "delayed@test.com")

	require.NotNil(t, body.DeliveryDelay)
	assert.Equal(t, delayType, body.DeliveryDelay.DelayType)
	assert.Equal(t, []Recipient{{EmailAddress: "delayed@test.com"}}, body.DeliveryDelay.DelayedRecipients)

	ts, err := time.Parse("2006-01-02T15:04:05.000Z", body.DeliveryDelay.Timestamp)
	require.NoError(t, err)
	exp, err := time.Parse("2006-01-02T15:04:05.000Z", body.DeliveryDelay.ExpirationTime)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, exp.Sub(ts))
}

func TestBuildRenderingFailureHasOnlyCommonFields(t *testing.T) {
	body := newTestBuilder().Build(EventRenderingFailure, "msg-1", "renderfail@test.com")

	assert.Equal(t, "Rendering Failure", body.EventType)
	assert.Nil(t, body.Send)
	assert.Nil(t, body.Delivery)
	assert.Nil(t, body.Bounce)
	assert.Nil(t, body.Complaint)
	assert.Nil(t, body.Reject)
	assert.Nil(t, body.Open)
	assert.Nil(t, body.Click)
	assert.Nil(t, body.DeliveryDelay)
}

func TestBuildUsesSimulatedClock(t *testing.T) {
	clock := store.NewClock()
	b := NewPayloadBuilder(clock)

	before := b.Build(EventSend, "msg-1", "a@example.com")
	clock.Advance(48 * time.Hour)
	after := b.Build(EventSend, "msg-1", "a@example.com")

	tsBefore, err := time.Parse("2006-01-02T15:04:05.000Z", before.Mail.Timestamp)
	require.NoError(t, err)
	tsAfter, err := time.Parse("2006-01-02T15:04:05.000Z", after.Mail.Timestamp)
	require.NoError(t, err)
	assert.InDelta(t, float64(48*time.Hour), float64(tsAfter.Sub(tsBefore)), float64(5*time.Second))
}
