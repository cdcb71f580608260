package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
	"github.com/HaPhanBaoMinh/netobs/internal/topology"
)

type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

var collections = map[string]domain.EntityKind{
	"processes":  domain.KindProcess,
	"sites":      domain.KindSite,
	"components": domain.KindComponent,
}

func (s *Server) listSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.inventory.ListSites(r.Context())
	respond(w, sites, err)
}

func (s *Server) listComponents(w http.ResponseWriter, r *http.Request) {
	comps, err := s.inventory.ListComponents(r.Context())
	respond(w, comps, err)
}

func (s *Server) listProcesses(w http.ResponseWriter, r *http.Request) {
	procs, err := s.inventory.ListProcesses(r.Context(), domain.ListOptions{SiteID: r.URL.Query().Get("siteId")})
	respond(w, procs, err)
}

func (s *Server) listServices(w http.ResponseWriter, r *http.Request) {
	svcs, err := s.inventory.ListServices(r.Context())
	respond(w, svcs, err)
}

func (s *Server) pairs(w http.ResponseWriter, r *http.Request) {
	focal, opts, err := s.focalRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := s.explorer.PairBuckets(r.Context(), focal, opts)
	respond(w, d, err)
}

func (s *Server) entityGraph(w http.ResponseWriter, r *http.Request) {
	focal, opts, err := s.focalRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	g, err := s.explorer.EntityGraph(r.Context(), focal, opts)
	respond(w, g, err)
}

func (s *Server) serviceGraph(w http.ResponseWriter, r *http.Request) {
	var rules []topology.GroupingRule
	switch by := r.URL.Query().Get("groupBy"); by {
	case "", "site":
		rules = append(rules, topology.GroupBySite)
	case "service":
		rules = append(rules, topology.GroupByService)
	default:
		writeError(w, badRequest{fmt.Sprintf("unknown groupBy %q", by)})
		return
	}
	g, err := s.explorer.ServiceGraph(r.Context(), chi.URLParam(r, "id"), rules...)
	respond(w, g, err)
}

// focalRequest reads the focal entity from the path and the pair options from
// the query: metrics=bytes,byteRate,latency range=5m sort=bytes.
func (s *Server) focalRequest(r *http.Request) (domain.FocalEntity, topology.Options, error) {
	opts := s.defaults
	kind, ok := collections[chi.URLParam(r, "collection")]
	if !ok {
		return domain.FocalEntity{}, opts, badRequest{fmt.Sprintf("%q has no pairs", chi.URLParam(r, "collection"))}
	}
	focal := domain.FocalEntity{Kind: kind, ID: chi.URLParam(r, "id")}

	q := r.URL.Query()
	if v := q.Get("range"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return focal, opts, badRequest{fmt.Sprintf("bad range %q", v)}
		}
		opts.Range = d
	}
	if v := q.Get("metrics"); v != "" {
		opts.ShowBytes, opts.ShowByteRate, opts.ShowLatency = false, false, false
		for _, m := range strings.Split(v, ",") {
			switch domain.MetricKind(strings.TrimSpace(m)) {
			case domain.MetricBytes:
				opts.ShowBytes = true
			case domain.MetricByteRate:
				opts.ShowByteRate = true
			case domain.MetricLatency:
				opts.ShowLatency = true
			default:
				return focal, opts, badRequest{fmt.Sprintf("unknown metric %q", m)}
			}
		}
	}
	if v := q.Get("sort"); v != "" {
		opts.Sort = topology.ParseSortKey(v)
		if opts.Sort == topology.SortNone {
			return focal, opts, badRequest{fmt.Sprintf("unknown sort %q", v)}
		}
	}
	return focal, opts, nil
}

func respond(w http.ResponseWriter, body any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// writeError maps lookups to 404, bad input to 400, and everything else,
// which is an upstream failure, to 502.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusBadGateway
	var br badRequest
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.As(err, &br), errors.Is(err, topology.ErrNotFocal):
		code = http.StatusBadRequest
	default:
		log.WithError(err).Warn("upstream request failed")
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Debug("failed to write response")
	}
}
