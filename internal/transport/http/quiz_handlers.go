package http

import (
	"net/http"

	"mock-exam-service/internal/app"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) subjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.service.ListSubjects(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, subjects)
}

func (h *Handler) customQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.service.ListCustomQuizzes(r.Context(), subject(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) createCustomQuiz(w http.ResponseWriter, r *http.Request) {
	var in app.CustomQuizInput
	if err := decode(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	quiz, err := h.service.CreateCustomQuiz(r.Context(), subject(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, quiz)
}

func (h *Handler) deleteCustomQuiz(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCustomQuiz(r.Context(), subject(r), chi.URLParam(r, "quizId")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
