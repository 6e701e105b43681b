package http

import (
	"net/http"

	"mock-exam-service/internal/app"
	"mock-exam-service/internal/domain"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.Overview(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handler) putExam(w http.ResponseWriter, r *http.Request) {
	var in app.ExamInput
	if err := decode(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	exam, err := h.service.PutExam(r.Context(), chi.URLParam(r, "examId"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, exam)
}

func (h *Handler) putPaper(w http.ResponseWriter, r *http.Request) {
	var paper domain.TestPaper
	if err := decode(w, r, &paper); err != nil {
		respondError(w, r, err)
		return
	}
	id := chi.URLParam(r, "testPaperId")
	if paper.ID != "" && paper.ID != id {
		respondError(w, r, domain.Malformed("body id %q does not match path", paper.ID))
		return
	}
	paper.ID = id
	saved, err := h.service.PutPaper(r.Context(), paper)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

type activeRequest struct {
	Active *bool `json:"active"`
}

func (h *Handler) setPaperActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Active == nil {
		respondError(w, r, domain.Malformed("active is required"))
		return
	}
	if err := h.service.SetPaperActive(r.Context(), chi.URLParam(r, "testPaperId"), *req.Active); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Enroll(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "examId")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unenroll(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Unenroll(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "examId")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.PaperAnalytics(r.Context(), chi.URLParam(r, "testPaperId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

type rerankResponse struct {
	Changed int `json:"changed"`
}

func (h *Handler) rerank(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Rerank(r.Context(), chi.URLParam(r, "testPaperId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rerankResponse{Changed: n})
}
