package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type buildInfo struct {
	Build           string   `json:"build"`
	SequencingTypes []string `json:"sequencing_types"`
}

func (s *Server) handleListBuilds(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	builds := s.table.Builds()
	out := make([]buildInfo, 0, len(builds))
	for _, b := range builds {
		types, err := s.table.SequencingTypes(b)
		if err != nil {
			status, apiErr := classifyError(err)
			respondError(w, reqID, status, apiErr)
			return
		}
		out = append(out, buildInfo{Build: b, SequencingTypes: types})
	}
	respondOK(w, reqID, out)
}

// handleResolveRefs returns the merged reference mapping. Query parameters
// act as the caller override layer.
func (s *Server) handleResolveRefs(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	build := chi.URLParam(r, "build")
	seqType := chi.URLParam(r, "seqType")

	var overrides map[string]any
	if q := r.URL.Query(); len(q) > 0 {
		overrides = make(map[string]any, len(q))
		for k := range q {
			overrides[k] = q.Get(k)
		}
	}

	refs, err := s.table.Resolve(build, seqType, overrides)
	if err != nil {
		status, apiErr := classifyError(err)
		respondError(w, reqID, status, apiErr)
		return
	}
	respondOK(w, reqID, refs)
}
