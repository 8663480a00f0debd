package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"promohub/internal/auth"
	"promohub/internal/models"
	"promohub/internal/service"
)

type registerResponse struct {
	models.User
	Token string `json:"token,omitempty"`
}

func (h *handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, "registration", err)
		return
	}

	user, token, err := h.Users.Register(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, "registration", err)
		return
	}
	writeJSON(w, http.StatusOK, registerResponse{User: user, Token: token})
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.Get(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		writeError(w, h.logger, "user lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// requester works out who asks for a deletion: an admin key wins, then the
// bearer token subject, then the email query parameter.
func (h *handler) requester(r *http.Request) (service.Requester, error) {
	q := r.URL.Query()
	if key := q.Get("key"); key != "" {
		if err := h.Admin.Check(key); err != nil {
			return service.Requester{}, err
		}
		return service.Requester{Admin: true}, nil
	}
	if id, ok := auth.UserIDFromContext(r.Context()); ok {
		return service.Requester{Email: id}, nil
	}
	return service.Requester{Email: q.Get("email")}, nil
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}
