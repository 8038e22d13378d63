package hxglue

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/schema"
	"go.uber.org/zap"

	"hxglue/internal/timefmt"
)

const recentDecisions = 20

func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Get(s.cfg.Swap.ScriptPath, s.handleScript)

	r.Route(adminPrefix, func(r chi.Router) {
		r.Get("/healthz", handleHealthz)
		r.Get("/stats", s.handleStats)
		r.Get("/format", s.handleFormat)
	})

	r.Handle("/*", http.HandlerFunc(s.proxy))
	return r
}

func (s *Service) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("took", time.Since(start)))
	})
}

func (s *Service) handleScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.script)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

type statsResponse struct {
	Statuses  map[string]StatusCounters `json:"statuses"`
	Responses statsSnapshot             `json:"responses"`
	Recent    []Decision                `json:"recent"`
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	recent, err := s.journal.Recent(recentDecisions)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "JOURNAL_READ", err.Error())
		return
	}

	counters := s.journal.Counters()
	statuses := make(map[string]StatusCounters, len(counters))
	for code, c := range counters {
		statuses[strconv.Itoa(code)] = c
	}

	if recent == nil {
		recent = []Decision{}
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Statuses:  statuses,
		Responses: s.stats.Snapshot(),
		Recent:    recent,
	})
}

type formatQuery struct {
	T  string `schema:"t"`
	TZ string `schema:"tz"`
}

type formatResponse struct {
	Display string `json:"display"`
	Form    string `json:"form"`
	Valid   bool   `json:"valid"`
}

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

func (s *Service) handleFormat(w http.ResponseWriter, r *http.Request) {
	var q formatQuery
	if err := queryDecoder.Decode(&q, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_QUERY", err.Error())
		return
	}
	if q.T == "" {
		writeError(w, http.StatusBadRequest, "MISSING_VALUE", "query parameter t is required")
		return
	}

	f := s.formatter
	if q.TZ != "" {
		loc, err := time.LoadLocation(q.TZ)
		if err != nil {
			writeError(w, http.StatusBadRequest, "BAD_TIMEZONE", err.Error())
			return
		}
		f = timefmt.New(loc)
	}

	_, err := f.Parse(q.T)
	writeJSON(w, http.StatusOK, formatResponse{
		Display: f.FormatTime(q.T),
		Form:    f.FormFormatTime(q.T),
		Valid:   err == nil,
	})
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, struct {
		Error apiError `json:"error"`
	}{Error: apiError{Code: code, Message: msg}})
}
