package server

import (
	"net/http"

	"github.com/me/wolf/internal/tasks"
	"github.com/me/wolf/pkg/flow"
)

type paramInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Elem     string `json:"elem,omitempty"`
	Default  any    `json:"default,omitempty"`
	SizeFrom string `json:"size_from,omitempty"`
}

type taskInfo struct {
	Name      string      `json:"name"`
	Version   string      `json:"version"`
	Image     string      `json:"image"`
	Signature string      `json:"signature"`
	Inputs    []paramInfo `json:"inputs"`
	Outputs   []paramInfo `json:"outputs"`
}

func describeParams(ps []flow.Param) []paramInfo {
	out := make([]paramInfo, len(ps))
	for i, p := range ps {
		out[i] = paramInfo{Name: p.Name, Kind: p.Kind.String(), Default: p.Default, SizeFrom: p.SizeFrom}
		if p.Kind == flow.KindCollection {
			out[i].Elem = p.Elem.String()
		}
	}
	return out
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	all := tasks.All()
	out := make([]taskInfo, len(all))
	for i, n := range all {
		out[i] = taskInfo{
			Name:      n.Name,
			Version:   n.Version,
			Image:     n.Image,
			Signature: n.Signature(),
			Inputs:    describeParams(n.Inputs),
			Outputs:   describeParams(n.Outputs),
		}
	}
	respondOK(w, reqID, out)
}
