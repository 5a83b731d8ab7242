package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"umrah_prices/internal/app"
	"umrah_prices/internal/domain"
)

type Handlers struct {
	Q   *app.QueryService
	Ops *app.OpsService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Get("/v1/hotels/search", h.searchHotels)
	s.mux.Get("/v1/hotels/{id}/offers", h.hotelOffers)
	s.mux.Get("/v1/hotels/{id}/history", h.priceHistory)
	s.mux.Get("/v1/hotels/{id}/calendar", h.calendar)
	s.mux.Get("/v1/hotels/{id}/risk", h.risk)
	s.mux.Get("/v1/transport", h.transport)

	s.mux.Get("/v1/ops/jobs", h.listJobs)
	s.mux.Get("/v1/ops/jobs/{id}", h.getJob)
	s.mux.Post("/v1/ops/jobs/{id}/retry", h.retryJob)
	s.mux.Post("/v1/ops/crawl", h.triggerCrawl)
	s.mux.Post("/v1/ops/mappings/{provider}/{providerHotelID}/confirm", h.confirmMapping)
	s.mux.Get("/v1/ops/providers/health", h.providerHealth)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrPermanent):
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
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

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

// ---- param helpers ----

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func queryDate(r *http.Request, name string) (time.Time, bool, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse("2006-01-02", s)
	return t, err == nil, err
}

func queryInt(r *http.Request, name string, def int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ---- public read surface ----

func (h *Handlers) searchHotels(w http.ResponseWriter, r *http.Request) {
	q := domain.SearchQuery{
		City:     r.URL.Query().Get("city"),
		Adults:   queryInt(r, "adults", 2),
		Children: queryInt(r, "children", 0),
		Currency: r.URL.Query().Get("currency"),
		Limit:    queryInt(r, "limit", 50),
	}
	if q.City == "" {
		writeProblem(w, http.StatusBadRequest, "Missing city", "city query parameter is required")
		return
	}

	ci, ok, err := queryDate(r, "check_in")
	if err != nil || !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid check_in", "check_in must be YYYY-MM-DD")
		return
	}
	q.CheckIn = ci
	if co, ok, err := queryDate(r, "check_out"); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid check_out", "check_out must be YYYY-MM-DD")
		return
	} else if ok {
		q.CheckOut = co
	}

	if s := r.URL.Query().Get("min_stars"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 5 {
			writeProblem(w, http.StatusBadRequest, "Invalid min_stars", "min_stars must be 1-5")
			return
		}
		q.MinStars = &n
	}
	if s := r.URL.Query().Get("max_price"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f <= 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid max_price", "max_price must be a positive number")
			return
		}
		q.MaxPrice = &f
	}

	rows, err := h.Q.SearchHotels(r.Context(), q)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, r, map[string]any{"items": toSearchView(rows)})
}

func (h *Handlers) hotelOffers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 200 {
		writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
		return
	}

	hotel, offers, err := h.Q.HotelOffers(r.Context(), id, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	items := make([]offerView, 0, len(offers))
	for _, o := range offers {
		items = append(items, toOfferView(o))
	}
	writeJSON(w, r, map[string]any{"hotel": toHotelView(hotel), "offers": items})
}

func (h *Handlers) priceHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	since := time.Now().AddDate(0, 0, -30)
	if s, ok, err := queryDate(r, "since"); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid since", "since must be YYYY-MM-DD")
		return
	} else if ok {
		since = s
	}

	points, err := h.Q.PriceHistory(r.Context(), id, since)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, r, map[string]any{"items": toHistoryView(points)})
}

func (h *Handlers) calendar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	from, ok, err := queryDate(r, "from")
	if err != nil || !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid from", "from must be YYYY-MM-DD")
		return
	}
	to, ok, err := queryDate(r, "to")
	if err != nil || !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid to", "to must be YYYY-MM-DD")
		return
	}

	days, err := h.Q.Calendar(r.Context(), id, from, to)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, r, map[string]any{"items": toCalendarView(days)})
}

func (h *Handlers) risk(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return
	}
	checkIn, ok, err := queryDate(r, "check_in")
	if err != nil || !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid check_in", "check_in must be YYYY-MM-DD")
		return
	}

	score, err := h.Q.Risk(r.Context(), id, checkIn)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, r, toRiskView(score))
}

func (h *Handlers) transport(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeProblem(w, http.StatusBadRequest, "Missing route", "from and to query parameters are required")
		return
	}
	rows, err := h.Q.Transport(r.Context(), from, to)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, r, map[string]any{"items": toTransportView(rows)})
}

// ---- operator surface ----

func (h *Handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	status := domain.JobStatus(r.URL.Query().Get("status"))
	limit := queryInt(r, "limit", 100)

	jobs, err := h.Ops.ListJobs(r.Context(), status, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	items := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, toJobView(j))
	}
	writeJSON(w, r, map[string]any{"items": items})
}

func (h *Handlers) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Ops.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, r, toJobView(job))
}

func (h *Handlers) retryJob(w http.ResponseWriter, r *http.Request) {
	if err := h.Ops.RetryJob(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) triggerCrawl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected {type, payload}")
		return
	}

	var payload map[string]any
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid payload", "payload must be a JSON object")
			return
		}
	}

	job, created, err := h.Ops.TriggerCrawl(r.Context(), req.Type, payload)
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if created {
		w.WriteHeader(http.StatusAccepted)
	} else {
		w.WriteHeader(http.StatusOK) // already queued or running
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"job_id": job.ID, "created": created})
}

func (h *Handlers) confirmMapping(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	pid := chi.URLParam(r, "providerHotelID")
	if err := h.Ops.ConfirmMapping(r.Context(), provider, pid); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) providerHealth(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-24 * time.Hour)
	if s, ok, err := queryDate(r, "since"); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid since", "since must be YYYY-MM-DD")
		return
	} else if ok {
		since = s
	}

	rows, err := h.Ops.ProviderHealth(r.Context(), since)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, r, map[string]any{"items": toHealthView(rows)})
}
