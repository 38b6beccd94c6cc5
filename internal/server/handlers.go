package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/crateintel/pkg/auth"
	"github.com/matzehuels/crateintel/pkg/errors"
	"github.com/matzehuels/crateintel/pkg/intel"
	"github.com/matzehuels/crateintel/pkg/render"
)

// bulkConcurrency bounds the fan-out of one batch request.
const bulkConcurrency = 5

func boolParam(req *http.Request, name string) bool {
	v := req.URL.Query().Get(name)
	return v == "1" || v == "true" || v == "yes"
}

// crateRequest validates the shared (name, version, depth) triple and
// gates the depth against the caller's tier.
func (s *Server) crateRequest(req *http.Request, name string) (string, intel.DepthTier, error) {
	if err := errors.ValidateCrateName(name); err != nil {
		return "", "", err
	}
	version := req.URL.Query().Get("version")
	if err := errors.ValidateVersion(version); err != nil {
		return "", "", err
	}
	depth, err := intel.ParseDepth(req.URL.Query().Get("depth"))
	if err != nil {
		return "", "", err
	}
	if err := s.deps.Auth.CheckDepth(callerKey(req), depth); err != nil {
		return "", "", err
	}
	return version, depth, nil
}

// recordPayload flattens a record to JSON and stamps the cache flag.
func recordPayload(rec intel.Record, cached bool) (map[string]any, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	payload["_cached"] = cached
	return payload, nil
}

func (s *Server) handleCrate(w http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "name")
	version, depth, err := s.crateRequest(req, name)
	if err != nil {
		writeError(w, err)
		return
	}

	opts := intel.Options{
		Dependencies: boolParam(req, "dependencies"),
		Examples:     boolParam(req, "examples"),
		Fresh:        boolParam(req, "fresh"),
	}
	rec, cached, err := s.deps.Intel.Get(req.Context(), name, version, depth, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	payload, err := recordPayload(rec, cached)
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "encode record"))
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleGraph(w http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "name")
	version, _, err := s.crateRequest(req, name)
	if err != nil {
		writeError(w, err)
		return
	}
	// The graph view always needs the dependency section, so it runs at
	// full depth regardless of the requested one.
	if err := s.deps.Auth.CheckDepth(callerKey(req), intel.DepthFull); err != nil {
		writeError(w, err)
		return
	}

	rec, cached, err := s.deps.Intel.Get(req.Context(), name, version, intel.DepthFull, intel.Options{
		Dependencies: true,
		Fresh:        boolParam(req, "fresh"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	full, ok := rec.(*intel.FullRecord)
	if !ok || full.Dependencies == nil {
		writeErrorBody(w, http.StatusNotFound, string(errors.ErrCodeNotFound), "no dependency data available")
		return
	}

	dot := render.ToDOT(full.Name, full.Dependencies)
	if req.URL.Query().Get("format") == "svg" {
		svg, err := render.RenderSVG(dot)
		if err != nil {
			writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "render graph"))
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Write(svg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":         full.Name,
		"version":      full.Version,
		"dot":          dot,
		"dependencies": full.Dependencies,
		"_cached":      cached,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, req *http.Request) {
	query := strings.TrimSpace(req.URL.Query().Get("q"))
	if query == "" {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "missing query parameter q"))
		return
	}
	// Semantic ranking is a paid surface; the underlying search is the
	// same registry query either way.
	if boolParam(req, "semantic") {
		key := callerKey(req)
		if key.Tier == auth.TierFree {
			writeError(w, &errors.TierError{
				Required: string(auth.TierPro),
				Message:  "semantic search is not available on the free tier",
			})
			return
		}
	}

	limit := 10
	if v := req.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	results, err := s.deps.Registry.Search(req.Context(), query, limit)
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeNetwork, err, "registry search failed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
		"total":   len(results),
	})
}

type bulkFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

func (s *Server) handleBulk(w http.ResponseWriter, req *http.Request) {
	raw := strings.TrimSpace(req.URL.Query().Get("names"))
	if raw == "" {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "missing names parameter"))
		return
	}
	var names []string
	for _, n := range strings.Split(raw, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}

	key := callerKey(req)
	if err := s.deps.Auth.CheckBulk(key, len(names)); err != nil {
		writeError(w, err)
		return
	}
	depth, err := intel.ParseDepth(req.URL.Query().Get("depth"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.deps.Auth.CheckDepth(key, depth); err != nil {
		writeError(w, err)
		return
	}

	// Fan out, no cancel-on-first-failure: each crate resolves or fails
	// on its own and the batch aggregates both sides.
	var (
		mu         sync.Mutex
		successful []map[string]any
		failed     []bulkFailure
	)
	g, ctx := errgroup.WithContext(req.Context())
	g.SetLimit(bulkConcurrency)
	for _, name := range names {
		g.Go(func() error {
			if err := errors.ValidateCrateName(name); err != nil {
				mu.Lock()
				failed = append(failed, bulkFailure{Name: name, Error: errors.UserMessage(err)})
				mu.Unlock()
				return nil
			}
			rec, cached, err := s.deps.Intel.Get(ctx, name, "latest", depth, intel.Options{})
			if err != nil {
				mu.Lock()
				failed = append(failed, bulkFailure{Name: name, Error: errors.UserMessage(err)})
				mu.Unlock()
				return nil
			}
			payload, err := recordPayload(rec, cached)
			if err != nil {
				mu.Lock()
				failed = append(failed, bulkFailure{Name: name, Error: "encode failed"})
				mu.Unlock()
				return nil
			}
			mu.Lock()
			successful = append(successful, payload)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if successful == nil {
		successful = []map[string]any{}
	}
	if failed == nil {
		failed = []bulkFailure{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"successful":       successful,
		"failed":           failed,
		"total_requested":  len(names),
		"total_successful": len(successful),
	})
}

func (s *Server) handlePopular(w http.ResponseWriter, req *http.Request) {
	limit := 10
	if v := req.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	records, err := s.deps.Store.Popular(req.Context(), limit)
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "popular query failed"))
		return
	}

	packages := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		b := rec.Base()
		packages = append(packages, map[string]any{
			"name":          b.Name,
			"version":       b.Version,
			"depth":         rec.Depth(),
			"downloads":     b.Downloads,
			"request_count": b.RequestCount,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"packages": packages,
		"total":    len(packages),
	})
}

// handleDebug reports backend connectivity for operators. No
// authentication: it exposes reachability, not data.
func (s *Server) handleDebug(w http.ResponseWriter, req *http.Request) {
	check := func(err error) string {
		if err != nil {
			return err.Error()
		}
		return "ok"
	}
	ctx := req.Context()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"backends": map[string]string{
			"registry": check(s.deps.Registry.Ping(ctx)),
			"docs":     check(s.deps.Source.Ping(ctx)),
			"store":    check(s.deps.Store.Ping(ctx)),
		},
	})
}
