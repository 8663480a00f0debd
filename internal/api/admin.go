package api

import (
	"net/http"

	"promohub/internal/service"
)

func (h *handler) createReport(w http.ResponseWriter, r *http.Request) {
	var in service.ReportInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, "filing report", err)
		return
	}
	report, err := h.Moderation.Report(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, "filing report", err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (h *handler) messageAdmins(w http.ResponseWriter, r *http.Request) {
	var in service.AdminDMInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, "messaging admins", err)
		return
	}
	dm, err := h.Moderation.MessageAdmins(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, "messaging admins", err)
		return
	}
	writeJSON(w, http.StatusCreated, dm)
}

func (h *handler) adminUsers(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.Check(r.URL.Query().Get("key")); err != nil {
		writeError(w, h.logger, "listing users", err)
		return
	}
	users, err := h.Users.List(r.Context())
	if err != nil {
		writeError(w, h.logger, "listing users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *handler) adminReports(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.Check(r.URL.Query().Get("key")); err != nil {
		writeError(w, h.logger, "listing reports", err)
		return
	}
	reports, err := h.Moderation.Reports(r.Context())
	if err != nil {
		writeError(w, h.logger, "listing reports", err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *handler) adminDMs(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.Check(r.URL.Query().Get("key")); err != nil {
		writeError(w, h.logger, "listing admin messages", err)
		return
	}
	dms, err := h.Moderation.AdminDMs(r.Context())
	if err != nil {
		writeError(w, h.logger, "listing admin messages", err)
		return
	}
	writeJSON(w, http.StatusOK, dms)
}

// adminBan bans by default; {"banned": false} lifts a ban.
func (h *handler) adminBan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key    string `json:"key"`
		Email  string `json:"email"`
		Banned *bool  `json:"banned"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, h.logger, "ban", err)
		return
	}
	if err := h.Admin.Check(body.Key); err != nil {
		writeError(w, h.logger, "ban", err)
		return
	}

	banned := true
	if body.Banned != nil {
		banned = *body.Banned
	}
	user, err := h.Users.SetBanned(r.Context(), body.Email, banned)
	if err != nil {
		writeError(w, h.logger, "ban", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
