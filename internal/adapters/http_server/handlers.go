// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"flex_reviews/internal/app"
	"flex_reviews/internal/domain"
)

type Handlers struct {
	Q *app.QueryService
	C *app.Curator
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/api", func(r chi.Router) {
		r.Get("/reviews/hostaway", h.listReviews)
		r.Get("/reviews/approved", h.approvedReviews)
		r.Get("/reviews/approved/save", h.getApprovedIDs)
		r.Post("/reviews/approved/save", h.saveApprovedIDs)

		r.Put("/curation/{id}", h.approve)
		r.Delete("/curation/{id}", h.unapprove)

		r.Get("/analytics/{view}", h.analytics)
		r.Get("/properties/{slug}", h.property)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "ValidationError", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrIneligible):
		writeProblem(w, http.StatusUnprocessableEntity, "EligibilityViolation", err.Error())
	case errors.Is(err, domain.ErrNotLoaded):
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error())
	case errors.Is(err, domain.ErrTransport):
		writeProblem(w, http.StatusBadGateway, "Upstream Unavailable", err.Error())
	default:
		log.Error().Err(err).Msg("unhandled error")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// respond writes v with a weak ETag and honors If-None-Match.
func respond(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "encode response")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func writeValue(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "encode response")
		return
	}
	writeJSON(w, status, body)
}

/********** reviews **********/

// criteriaFrom reads the dashboard filter parameters. Empty or "all" means
// no constraint.
func criteriaFrom(r *http.Request) (app.Criteria, app.SortKey, error) {
	q := r.URL.Query()
	var c app.Criteria

	if v := strings.TrimSpace(q.Get("minRating")); v != "" && v != "all" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 5 {
			return c, "", fmt.Errorf("%w: minRating must be a number between 0 and 5", domain.ErrValidation)
		}
		c.MinRating = &f
	}
	if v := strings.TrimSpace(q.Get("dateRange")); v != "" && v != "all" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c, "", fmt.Errorf("%w: dateRange must be a positive number of days", domain.ErrValidation)
		}
		c.WithinDays = n
	}
	if v := q.Get("channel"); v != "all" {
		c.Channel = v
	}
	if v := q.Get("category"); v != "all" {
		c.Category = v
	}
	switch t := domain.ReviewType(q.Get("type")); t {
	case "", "all":
	case domain.GuestToHost, domain.HostToGuest:
		c.Type = t
	default:
		return c, "", fmt.Errorf("%w: unknown review type %q", domain.ErrValidation, t)
	}
	c.Search = strings.TrimSpace(q.Get("search"))
	return c, app.ParseSortKey(q.Get("sort")), nil
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	c, key, err := criteriaFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, r, h.Q.ListReviews(r.Context(), c, key))
}

// parseIDList reads "1,2,3". Entries that are not integers match nothing.
func parseIDList(s string) []int64 {
	out := []int64{}
	for _, part := range strings.Split(s, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func (h *Handlers) approvedReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var ids []int64
	if v := q.Get("approvedIds"); strings.TrimSpace(v) != "" {
		ids = parseIDList(v)
	}
	respond(w, r, h.Q.ApprovedReviews(r.Context(), q.Get("property"), ids))
}

/********** curation **********/

type idsPayload struct {
	ReviewIDs []int64 `json:"reviewIds"`
}

func (h *Handlers) getApprovedIDs(w http.ResponseWriter, r *http.Request) {
	ids := h.C.Store().Current(r.Context())
	writeValue(w, http.StatusOK, idsPayload{ReviewIDs: ids})
}

// decodeIDs accepts {"reviewIds": [integers]} and nothing else.
func decodeIDs(w http.ResponseWriter, r *http.Request) ([]int64, error) {
	var body struct {
		ReviewIDs []json.Number `json:"reviewIds"`
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: reviewIds must be an array of integers", domain.ErrValidation)
	}
	if body.ReviewIDs == nil {
		return nil, fmt.Errorf("%w: reviewIds must be an array", domain.ErrValidation)
	}
	ids := make([]int64, 0, len(body.ReviewIDs))
	for _, n := range body.ReviewIDs {
		id, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer id", domain.ErrValidation, n.String())
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (h *Handlers) saveApprovedIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := decodeIDs(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.C.Replace(r.Context(), ids); err != nil {
		writeError(w, err)
		return
	}
	if err := h.C.Store().Flush(r.Context()); err != nil {
		log.Warn().Err(err).Msg("durable save failed; local copy kept")
		writeProblem(w, http.StatusBadGateway, "Durable Store Unavailable",
			"approval saved locally and will be retried")
		return
	}
	writeValue(w, http.StatusOK, struct {
		Success   bool    `json:"success"`
		ReviewIDs []int64 `json:"reviewIds"`
	}{true, h.C.Store().IDs()})
}

type curationState struct {
	ID       int64 `json:"id"`
	Approved bool  `json:"approved"`
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id must be a number", domain.ErrValidation)
	}
	return id, nil
}

// approve and unapprove go through the debounced write path; 202 means the
// change is applied in memory and queued for persistence.
func (h *Handlers) approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = h.C.Approve(r.Context(), id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, http.StatusAccepted, curationState{ID: id, Approved: true})
}

func (h *Handlers) unapprove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = h.C.Unapprove(r.Context(), id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeValue(w, http.StatusAccepted, curationState{ID: id, Approved: false})
}

/********** analytics **********/

func (h *Handlers) analytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch chi.URLParam(r, "view") {
	case "overview":
		respond(w, r, h.Q.Overview(ctx))
	case "properties":
		respond(w, r, h.Q.Properties(ctx))
	case "trends":
		respond(w, r, h.Q.Trends(ctx))
	case "categories":
		respond(w, r, h.Q.Categories(ctx))
	case "channels":
		respond(w, r, h.Q.Channels(ctx))
	case "issues":
		limit := app.DefaultIssueLimit
		if ls := r.URL.Query().Get("limit"); ls != "" {
			l, err := strconv.Atoi(ls)
			if err != nil || l <= 0 || l > 50 {
				writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 50")
				return
			}
			limit = l
		}
		respond(w, r, h.Q.Issues(ctx, limit))
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "unknown analytics view")
	}
}

func (h *Handlers) property(w http.ResponseWriter, r *http.Request) {
	d, err := h.Q.Property(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, r, d)
}
