// Package server exposes the resolver over HTTP for long-lived
// deployments: one recipe index is loaded at startup and shared by all
// requests, resolved plans are cached keyed on the index digest and the
// canonical request.
package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/constracktor/concretor/pkg/cache"
	"github.com/constracktor/concretor/pkg/errors"
	"github.com/constracktor/concretor/pkg/plan"
	"github.com/constracktor/concretor/pkg/recipe"
	"github.com/constracktor/concretor/pkg/solver"
	"github.com/constracktor/concretor/pkg/spec"
)

// DefaultPlanTTL is how long cached plans stay valid. The index digest is
// part of every key, so a recipe change invalidates naturally; the TTL
// only bounds cache growth.
const DefaultPlanTTL = 24 * time.Hour

// Server handles resolve requests against a fixed recipe index.
type Server struct {
	index  *recipe.Index
	solver *solver.Solver
	plans  cache.Cache
	logger *log.Logger
}

// New creates a Server. A nil plans cache disables plan caching; a nil
// logger discards logs.
func New(ix *recipe.Index, plans cache.Cache, logger *log.Logger) *Server {
	if plans == nil {
		plans = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{
		index:  ix,
		solver: solver.New(ix, solver.Options{}),
		plans:  plans,
		logger: logger,
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/resolve", s.handleResolve)
		r.Get("/recipes", s.handleRecipeList)
		r.Get("/recipes/{name}", s.handleRecipeShow)
	})
	return r
}

// resolveRequest is the body of POST /v1/resolve.
type resolveRequest struct {
	// Specs are the requested package specs, e.g. "hpxsc@0.1.0: +cuda".
	Specs []string `json:"specs"`
}

// resolveResponse wraps the computed plan.
type resolveResponse struct {
	Plan   *plan.Plan `json:"plan"`
	Digest string     `json:"digest"`
	Cached bool       `json:"cached"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body"))
		return
	}
	if len(req.Specs) == 0 {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "no specs requested"))
		return
	}

	roots := make([]*spec.Spec, 0, len(req.Specs))
	canonical := make([]string, 0, len(req.Specs))
	for _, raw := range req.Specs {
		sp, err := spec.Parse(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		roots = append(roots, sp)
		canonical = append(canonical, sp.String())
	}
	sort.Strings(canonical)

	key := cache.PlanKey(s.index.Digest(), canonical)
	if data, hit, err := s.plans.Get(r.Context(), key); err == nil && hit {
		var p plan.Plan
		if json.Unmarshal(data, &p) == nil {
			s.writePlan(w, r, &p, true)
			return
		}
	} else if err != nil {
		s.logger.Warn("plan cache get failed", "err", err)
	}

	g, err := s.solver.Solve(r.Context(), roots)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := plan.FromGraph(g)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if data, err := json.Marshal(p); err == nil {
		if err := s.plans.Set(r.Context(), key, data, DefaultPlanTTL); err != nil {
			s.logger.Warn("plan cache set failed", "err", err)
		}
	}
	s.writePlan(w, r, p, false)
}

func (s *Server) writePlan(w http.ResponseWriter, r *http.Request, p *plan.Plan, cached bool) {
	digest, err := p.Digest()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{Plan: p, Digest: digest, Cached: cached})
}

// recipeSummary is the list form of one recipe.
type recipeSummary struct {
	Name     string   `json:"name"`
	Versions []string `json:"versions"`
	Variants []string `json:"variants,omitempty"`
}

func (s *Server) handleRecipeList(w http.ResponseWriter, r *http.Request) {
	out := struct {
		Digest  string          `json:"digest"`
		Recipes []recipeSummary `json:"recipes"`
	}{Digest: s.index.Digest()}

	for _, name := range s.index.Names() {
		rec, _ := s.index.Get(name)
		out.Recipes = append(out.Recipes, summarize(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRecipeShow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	rec, ok := s.index.Get(name)
	if !ok {
		s.writeError(w, r, errors.New(errors.ErrCodeUnknownPackage, "no recipe for package %s", name))
		return
	}
	writeJSON(w, http.StatusOK, summarize(rec))
}

func summarize(rec *recipe.Recipe) recipeSummary {
	out := recipeSummary{Name: rec.Name}
	for _, d := range rec.Versions {
		out.Versions = append(out.Versions, d.Version.String())
	}
	for _, v := range rec.Variants {
		out.Variants = append(out.Variants, v.Name)
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"recipes": s.index.Len(),
		"digest":  s.index.Digest(),
	})
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}

	var body errorBody
	body.Error.Code = string(code)
	body.Error.Message = errors.UserMessage(err)
	writeJSON(w, status, body)
}

// statusFor maps resolver error codes to HTTP statuses: bad requests are
// the caller's fault, unresolvable constraints are conflicts, everything
// else is internal.
func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidSpec,
		errors.ErrCodeInvalidVersionConstraint, errors.ErrCodeUnknownVariant,
		errors.ErrCodeInvalidVariantValue:
		return http.StatusBadRequest
	case errors.ErrCodeUnknownPackage:
		return http.StatusNotFound
	case errors.ErrCodeUnsatisfiable, errors.ErrCodeDiamondConflict,
		errors.ErrCodeConflictingConstraint, errors.ErrCodeCyclicDependency,
		errors.ErrCodeConflictDeclared, errors.ErrCodeUnknownCompiler:
		return http.StatusConflict
	case errors.ErrCodeResolutionAborted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		http.Error(w, `{"error":{"code":"INTERNAL_ERROR","message":"encoding failed"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
