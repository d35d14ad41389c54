package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Jobs
	mux.HandleFunc("/api/jobs", s.handleJobsRoute)  // GET (list), POST (create)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes) // Handles /api/jobs/{id} and subpaths

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/shutdown", s.ShutdownHandler) // Graceful shutdown endpoint (dev mode)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleJobsRoute routes the job collection endpoint
func (s *Server) handleJobsRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r,
		s.app.JobHandler.ListJobsHandler,
		s.app.JobHandler.CreateJobHandler,
	)
}

// handleJobRoutes routes job-scoped requests to the appropriate handler
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// POST /api/jobs/{id}/cancel
	if strings.HasSuffix(path, "/cancel") {
		RouteByMethod(w, r, MethodRouter{
			"POST": s.app.JobHandler.CancelJobHandler,
		})
		return
	}

	// GET/POST /api/jobs/{id}/titles
	if strings.HasSuffix(path, "/titles") {
		RouteByMethod(w, r, MethodRouter{
			"GET":  s.app.TitleHandler.GetTitleGroupsHandler,
			"POST": s.app.TitleHandler.SelectTitlesHandler,
		})
		return
	}

	// GET /api/jobs/{id}/results
	if strings.HasSuffix(path, "/results") {
		RouteByMethod(w, r, MethodRouter{
			"GET": s.app.JobHandler.GetJobResultsHandler,
		})
		return
	}

	// GET /api/jobs/{id}/export
	if strings.HasSuffix(path, "/export") {
		RouteByMethod(w, r, MethodRouter{
			"GET": s.app.ExportHandler.GetExportHandler,
		})
		return
	}

	// GET /api/jobs/{id}
	RouteByMethod(w, r, MethodRouter{
		"GET": s.app.JobHandler.GetJobHandler,
	})
}
