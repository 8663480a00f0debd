package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"promohub/internal/service"
)

func (h *handler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Content.ListProjects(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, h.logger, "listing projects", err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *handler) createProject(w http.ResponseWriter, r *http.Request) {
	var in service.ProjectInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, "creating project", err)
		return
	}
	p, err := h.Content.CreateProject(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, "creating project", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *handler) voteProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VoterID string `json:"voterId"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, h.logger, "voting", err)
		return
	}
	res, err := h.Content.VoteProject(r.Context(), chi.URLParam(r, "id"), body.VoterID)
	if err != nil {
		writeError(w, h.logger, "voting", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	who, err := h.requester(r)
	if err != nil {
		writeError(w, h.logger, "deleting project", err)
		return
	}
	if err := h.Content.DeleteProject(r.Context(), chi.URLParam(r, "id"), who); err != nil {
		writeError(w, h.logger, "deleting project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.Content.ListPosts(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, h.logger, "listing posts", err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *handler) createPost(w http.ResponseWriter, r *http.Request) {
	var in service.PostInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, "creating post", err)
		return
	}
	p, err := h.Content.CreatePost(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, "creating post", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *handler) likePost(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, h.logger, "liking post", err)
		return
	}
	res, err := h.Content.LikePost(r.Context(), chi.URLParam(r, "id"), body.UserID)
	if err != nil {
		writeError(w, h.logger, "liking post", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) deletePost(w http.ResponseWriter, r *http.Request) {
	who, err := h.requester(r)
	if err != nil {
		writeError(w, h.logger, "deleting post", err)
		return
	}
	if err := h.Content.DeletePost(r.Context(), chi.URLParam(r, "id"), who); err != nil {
		writeError(w, h.logger, "deleting post", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
