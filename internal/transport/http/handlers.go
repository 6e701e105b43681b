package http

import (
	"net/http"

	"mock-exam-service/internal/app"
	"mock-exam-service/internal/domain"

	"github.com/go-chi/chi/v5"
)

// Handler exposes ExamService over REST.
type Handler struct {
	service *app.ExamService
}

func NewHandler(service *app.ExamService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.ListCategories(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cats)
}

func (h *Handler) papersByCategory(w http.ResponseWriter, r *http.Request) {
	papers, err := h.service.ListPapers(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, papers)
}

func (h *Handler) paper(w http.ResponseWriter, r *http.Request) {
	paper, err := h.service.PaperForLearner(r.Context(), subject(r), chi.URLParam(r, "testPaperId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, paper)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Start(r.Context(), subject(r), chi.URLParam(r, "testPaperId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type draftRequest struct {
	Answers domain.AnswerSheet `json:"answers"`
}

func (h *Handler) saveDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.service.SaveDraft(r.Context(), subject(r), chi.URLParam(r, "testPaperId"), req.Answers); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitRequest struct {
	AttemptID string             `json:"attemptId"`
	Answers   domain.AnswerSheet `json:"answers"`
	TimeSpent *int               `json:"timeSpent"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decode(w, r, &req); err != nil {
		respondSubmitError(w, r, err)
		return
	}
	res, err := h.service.Submit(r.Context(), app.SubmitRequest{
		UserID:           subject(r),
		TestPaperID:      chi.URLParam(r, "testPaperId"),
		AttemptID:        req.AttemptID,
		Answers:          req.Answers,
		TimeSpentSeconds: req.TimeSpent,
	})
	if err != nil {
		respondSubmitError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) results(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ListResults(r.Context(), subject(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) result(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetResult(r.Context(), subject(r), chi.URLParam(r, "attemptId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Dashboard(r.Context(), subject(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
