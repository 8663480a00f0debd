package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"promohub/internal/service"
)

func (h *handler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Groups.List(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, h.logger, "listing groups", err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var in service.GroupInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, "creating group", err)
		return
	}
	g, err := h.Groups.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, "creating group", err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *handler) joinGroup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, h.logger, "joining group", err)
		return
	}
	res, err := h.Groups.Join(r.Context(), chi.URLParam(r, "id"), body.Email)
	if err != nil {
		writeError(w, h.logger, "joining group", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) groupMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.Groups.Messages(r.Context(), chi.URLParam(r, "id"), queryLimit(r))
	if err != nil {
		writeError(w, h.logger, "loading group messages", err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *handler) postGroupMessage(w http.ResponseWriter, r *http.Request) {
	var in service.GroupMessageInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, "posting group message", err)
		return
	}
	m, err := h.Groups.PostMessage(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, h.logger, "posting group message", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}
