package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.metricsMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(v1 chi.Router) {
		if s.authMw != nil {
			v1.Use(s.authMw.Middleware)
		}

		// The event stream is long-lived and must not inherit the request
		// timeout.
		v1.Get("/stream", s.handleStream)

		v1.Group(func(v1 chi.Router) {
			v1.Use(middleware.Timeout(60 * time.Second))

			v1.Get("/sync", s.handleSync)

			v1.Post("/reports", s.handleCreateReport)
			v1.Get("/reports", s.handleListReports)
			v1.Get("/reports/pending", s.handleListPendingReports)
			v1.Get("/reports/active", s.handleListActiveReports)
			v1.Get("/reports/{reportID}", s.handleGetReport)

			v1.Post("/ambulances", s.handleRegisterAmbulance)
			v1.Get("/ambulances", s.handleListAmbulances)
			v1.Get("/ambulances/available", s.handleListAvailableAmbulances)
			v1.Get("/ambulances/{ambulanceID}", s.handleGetAmbulance)
			v1.Patch("/ambulances/{ambulanceID}/status", s.handleSetAmbulanceStatus)
			v1.Post("/ambulances/{ambulanceID}/release", s.handleReleaseAmbulance)

			v1.Post("/hospitals", s.handleProvisionHospital)
			v1.Get("/hospitals", s.handleListHospitals)
			v1.Get("/hospitals/available", s.handleListAvailableHospitals)
			v1.Get("/hospitals/{hospitalID}", s.handleGetHospital)
			v1.Patch("/hospitals/{hospitalID}/beds", s.handleUpdateBeds)
			v1.Get("/hospitals/{hospitalID}/incoming", s.handleIncomingAmbulances)

			v1.Post("/assignments", s.handleCreateAssignment)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		duration := time.Since(start)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", duration).
			Msg("http request")
	})
}
