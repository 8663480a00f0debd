package api

import (
	"context"
	"io"
	"net/http"

	"promohub/internal/ai"
	"promohub/internal/apperror"
	"promohub/internal/models"
)

func (h *handler) createIntent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string      `json:"email"`
		Plan  models.Plan `json:"plan"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, h.logger, "creating payment intent", err)
		return
	}
	intent, err := h.Billing.CreateIntent(r.Context(), body.Email, body.Plan)
	if err != nil {
		writeError(w, h.logger, "creating payment intent", err)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

// paymentWebhook needs the raw body: the signature covers its exact bytes.
func (h *handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, h.logger, "payment webhook", apperror.ValidationFailed("body", "unreadable body"))
		return
	}
	if err := h.Billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeError(w, h.logger, "payment webhook", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

type completionRequest struct {
	Prompt  string    `json:"prompt"`
	History []ai.Turn `json:"history"`
}

func (h *handler) aiCopy(w http.ResponseWriter, r *http.Request) {
	h.complete(w, r, ai.ModeCopy)
}

func (h *handler) aiCoach(w http.ResponseWriter, r *http.Request) {
	h.complete(w, r, ai.ModeCoach)
}

func (h *handler) complete(w http.ResponseWriter, r *http.Request, mode ai.Mode) {
	op := "ai " + string(mode)
	if h.Assistant == nil {
		writeError(w, h.logger, op, apperror.Unavailable("the AI assistant is not configured"))
		return
	}
	var req completionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, op, err)
		return
	}

	ctx := r.Context()
	if h.UpstreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.UpstreamTimeout)
		defer cancel()
	}

	text, err := h.Assistant.Complete(ctx, mode, req.Prompt, req.History)
	if err != nil {
		writeError(w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}
