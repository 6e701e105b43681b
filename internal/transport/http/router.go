package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds the transport settings taken from config.
type RouterConfig struct {
	CORSOrigins []string
}

// NewRouter mounts the REST API, the standings websocket and health checks.
func NewRouter(h *Handler, ws *WSHandler, auth *Authenticator, cfg RouterConfig) http.Handler {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(30 * time.Second))
		api.Use(auth.Middleware)

		api.Get("/exams/categories", h.categories)
		api.Get("/exams/category/{category}", h.papersByCategory)
		api.Route("/exam/{testPaperId}", func(er chi.Router) {
			er.Get("/", h.paper)
			er.Post("/start", h.start)
			er.Put("/draft", h.saveDraft)
			er.Post("/submit", h.submit)
		})
		api.Get("/results", h.results)
		api.Get("/results/{attemptId}", h.result)
		api.Get("/dashboard/stats", h.dashboard)
		api.Route("/quiz", func(qr chi.Router) {
			qr.Get("/subjects", h.subjects)
			qr.Get("/custom", h.customQuizzes)
			qr.Post("/custom", h.createCustomQuiz)
			qr.Delete("/custom/{quizId}", h.deleteCustomQuiz)
		})

		api.Route("/admin", func(ar chi.Router) {
			ar.Use(RequireRole(RoleAdmin))
			ar.Get("/stats", h.overview)
			ar.Put("/exams/{examId}", h.putExam)
			ar.Put("/exams/{examId}/enrollments/{userId}", h.enroll)
			ar.Delete("/exams/{examId}/enrollments/{userId}", h.unenroll)
			ar.Put("/test-papers/{testPaperId}", h.putPaper)
			ar.Post("/test-papers/{testPaperId}/active", h.setPaperActive)
			ar.Get("/test-papers/{testPaperId}/analytics", h.analytics)
			ar.Post("/test-papers/{testPaperId}/rerank", h.rerank)
		})
	})

	r.With(auth.Middleware, RequireRole(RoleAdmin)).Get("/ws/standings", ws.ServeWS)
	return r
}
