package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wondertwin-ai/twin-ses/internal/store"
	"github.com/wondertwin-ai/twin-ses/internal/twincore"
)

// identityType classifies an identity name the way SES does: anything with
// an @ is an email address, anything else a domain.
func identityType(name string) string {
	if strings.Contains(name, "@") {
		return "EMAIL_ADDRESS"
	}
	return "DOMAIN"
}

// placeholderTokens synthesizes DKIM tokens for an identity. They are
// stable per name so repeated reads agree, but carry no cryptographic
// meaning.
func placeholderTokens(name string) []string {
	tokens := make([]string, 3)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("%s-token-%d", strings.ReplaceAll(strings.ToLower(name), "@", "-at-"), i+1)
	}
	return tokens
}

func defaultIdentity(name string) store.Identity {
	return store.Identity{
		IdentityType:             identityType(name),
		IdentityName:             name,
		VerifiedForSendingStatus: true,
		DkimAttributes: store.DkimAttributes{
			SigningEnabled:          true,
			Status:                  "SUCCESS",
			Tokens:                  placeholderTokens(name),
			SigningAttributesOrigin: "AWS_SES",
		},
	}
}

// GetIdentity handles GET /api/ses/v2/email/identities/{identity}.
// Unknown identities get a default synthesized, already-verified record.
func (h *Handler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "identity")

	identity, ok := h.store.Identities.Get(strings.ToLower(name))
	if !ok {
		identity = defaultIdentity(name)
	}

	twincore.JSON(w, http.StatusOK, identity)
}

// createIdentityRequest matches the SES v2 CreateEmailIdentity request body.
type createIdentityRequest struct {
	EmailIdentity         string `json:"EmailIdentity"`
	DkimSigningAttributes *struct {
		DomainSigningSelector   string `json:"DomainSigningSelector,omitempty"`
		DomainSigningPrivateKey string `json:"DomainSigningPrivateKey,omitempty"`
		NextSigningKeyLength    string `json:"NextSigningKeyLength,omitempty"`
	} `json:"DkimSigningAttributes,omitempty"`
}

// CreateIdentity handles POST /api/ses/v2/email/identities.
func (h *Handler) CreateIdentity(w http.ResponseWriter, r *http.Request) {
	var req createIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		twincore.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.EmailIdentity == "" {
		twincore.Error(w, http.StatusBadRequest, "EmailIdentity is required")
		return
	}

	identity := defaultIdentity(req.EmailIdentity)
	if req.DkimSigningAttributes != nil && req.DkimSigningAttributes.DomainSigningPrivateKey != "" {
		// BYODKIM: the caller brings its own key, so no tokens are issued.
		identity.DkimAttributes.Tokens = nil
		identity.DkimAttributes.SigningAttributesOrigin = "EXTERNAL"
	}
	h.store.Identities.Set(strings.ToLower(req.EmailIdentity), identity)

	twincore.JSON(w, http.StatusOK, map[string]any{
		"DkimAttributes":     identity.DkimAttributes,
		"VerificationStatus": "SUCCESS",
		"VerificationInfo":   map[string]any{},
	})
}

// DeleteIdentity handles DELETE /api/ses/v2/email/identities/{identity}.
func (h *Handler) DeleteIdentity(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "identity")
	h.store.Identities.Delete(strings.ToLower(name))
	twincore.JSON(w, http.StatusOK, map[string]any{})
}

// putMailFromRequest matches the SES v2 PutEmailIdentityMailFromAttributes body.
type putMailFromRequest struct {
	MailFromDomain string `json:"MailFromDomain"`
}

// PutMailFrom handles PUT /api/ses/v2/email/identities/{identity}/mail-from.
func (h *Handler) PutMailFrom(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "identity"))

	var req putMailFromRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		twincore.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	identity, ok := h.store.Identities.Get(name)
	if !ok {
		twincore.Error(w, http.StatusNotFound, "identity not found: "+name)
		return
	}

	identity.MailFromDomain = req.MailFromDomain
	h.store.Identities.Set(name, identity)

	twincore.JSON(w, http.StatusOK, map[string]any{
		"$metadata": map[string]any{"httpStatusCode": 200},
	})
}
