package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "wolf API",
		Version:     "v1",
		Description: "Lazy task-graph construction for somatic variant calling workflows",
		Endpoints: []endpointInfo{
			{"/api/v1/refs", []string{"GET"}, "Known genome builds and their sequencing types"},
			{"/api/v1/refs/{build}/{seq_type}", []string{"GET"}, "Resolved reference files for a build and sequencing type"},
			{"/api/v1/tasks", []string{"GET"}, "Task catalogue with schemas and signatures"},
			{"/api/v1/plans", []string{"GET", "POST"}, "Build a MuTect2 plan, or list stored plans"},
			{"/api/v1/plans/{id}", []string{"GET", "DELETE"}, "Single stored plan"},
			{"/api/v1/plans/{id}/dot", []string{"GET"}, "Graphviz rendering of a stored plan"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
