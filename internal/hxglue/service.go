package hxglue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hxglue/internal/swap"
	"hxglue/internal/timefmt"
)

const (
	adminPrefix = "/_hxglue"

	headerRequestID      = "X-Request-Id"
	headerHxglue         = "X-Hxglue"
	headerOriginalStatus = "X-Hxglue-Status"
)

var errBodyTooLarge = errors.New("origin body exceeds server.maxBody")

// hop-by-hop headers are never forwarded in either direction
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

type Service struct {
	cfg Config
	log *zap.Logger

	httpClient *http.Client

	bus        *swap.Bus
	unregister []func()

	formatter timefmt.Formatter
	script    []byte

	journal *journal
	stats   *statsCollector

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewService opens the journal, registers the swap override on a fresh
// bus and starts background loops. A nil logger discards output.
func NewService(cfg Config, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}

	script, err := swap.Script(swap.ScriptOptions{Helpers: cfg.Swap.Helpers})
	if err != nil {
		return nil, fmt.Errorf("render client script: %w", err)
	}

	j, err := openJournal(cfg.Journal.Path, cfg.journalMaxBytes, log.Named("journal"))
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:        cfg,
		log:        log,
		httpClient: &http.Client{Timeout: cfg.timeoutDur, CheckRedirect: noRedirect},
		bus:        swap.NewBus(),
		formatter:  timefmt.New(cfg.location),
		script:     script,
		journal:    j,
		stats:      newStatsCollector(),
		stopCh:     make(chan struct{}),
	}
	s.unregister = append(s.unregister, swap.Register(s.bus))

	if cfg.statsEveryDur > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.statsLoop(cfg.statsEveryDur)
		}()
	}

	log.Info("swap override registered",
		zap.Ints("statuses", swap.SwappableStatuses()),
		zap.String("script", cfg.Swap.ScriptPath),
		zap.Bool("inject", cfg.Swap.Inject),
		zap.Bool("rewriteStatus", cfg.Swap.RewriteStatus))

	return s, nil
}

// redirects are the browser's business, pass them through untouched
func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Bus exposes the before-swap bus so callers can add their own handlers.
func (s *Service) Bus() *swap.Bus { return s.bus }

func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		for _, off := range s.unregister {
			off()
		}
		s.journal.close()
		s.httpClient.CloseIdleConnections()
	})
}

func (s *Service) proxy(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get(headerRequestID)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set(headerRequestID, reqID)

	resp, err := s.fetchFromOrigin(r, reqID)
	if err != nil {
		s.log.Warn("origin request failed",
			zap.String("requestId", reqID),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		w.Header().Set(headerHxglue, "bad-gateway")
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	resp.Header.Del(headerRequestID)

	if isHTMXRequest(r) {
		s.applySwap(r, reqID, &resp)
	} else if s.cfg.Swap.Inject && isFullHTMLPage(resp.Header, resp.Body) {
		s.inject(reqID, &resp)
	}

	writeResponse(w, resp)
	s.stats.Observe(resp.Status, len(resp.Body))
}

func isHTMXRequest(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("HX-Request"), "true")
}

// applySwap runs the before-swap handlers against the origin response and
// records the outcome. With swap.rewriteStatus, forced swaps of error
// statuses are sent as 200 so htmx swaps them without the client script.
func (s *Service) applySwap(r *http.Request, reqID string, resp *originResponse) {
	d := swap.NewDetail(resp.Status, resp.Header, r.URL.Path)
	before := *d
	s.bus.Dispatch(swap.BeforeSwap, d)

	dec := Decision{
		At:         time.Now().UnixNano(),
		RequestID:  reqID,
		Method:     r.Method,
		Path:       r.URL.Path,
		Status:     resp.Status,
		ShouldSwap: d.ShouldSwap,
		IsError:    d.IsError,
		Overridden: !before.ShouldSwap && d.ShouldSwap,
	}
	s.journal.Record(dec)

	s.log.Debug("before swap",
		zap.String("requestId", reqID),
		zap.String("path", dec.Path),
		zap.Int("status", dec.Status),
		zap.Bool("shouldSwap", dec.ShouldSwap),
		zap.Bool("isError", dec.IsError),
		zap.Bool("overridden", dec.Overridden))

	if s.cfg.Swap.RewriteStatus && d.ShouldSwap && !d.IsError && resp.Status >= 400 {
		resp.Header.Set(headerOriginalStatus, strconv.Itoa(resp.Status))
		resp.Status = http.StatusOK
		return
	}
	if before.ShouldSwap && !d.ShouldSwap {
		resp.Header.Set("HX-Reswap", "none")
	}
}

func (s *Service) inject(reqID string, resp *originResponse) {
	body, changed, err := injectScript(resp.Body, s.cfg.Swap.ScriptPath)
	if err != nil {
		s.log.Warn("script injection failed", zap.String("requestId", reqID), zap.Error(err))
		return
	}
	if !changed {
		return
	}
	resp.Body = body
	weakenETag(resp.Header)
	resp.Header.Set(headerHxglue, "injected")
}

func (s *Service) fetchFromOrigin(r *http.Request, reqID string) (originResponse, error) {
	originURL := s.cfg.Server.Origin + r.URL.RequestURI()
	req, err := http.NewRequestWithContext(r.Context(), r.Method, originURL, r.Body)
	if err != nil {
		return originResponse{}, err
	}
	req.ContentLength = r.ContentLength
	copyHeaders(req.Header, r.Header)
	req.Header.Set(headerRequestID, reqID)
	// bodies may be rewritten, keep them plain
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return originResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.maxBodyBytes+1))
	if err != nil {
		return originResponse{}, err
	}
	if int64(len(body)) > s.cfg.maxBodyBytes {
		return originResponse{}, errBodyTooLarge
	}

	out := originResponse{
		Status: resp.StatusCode,
		Header: cloneHeader(resp.Header),
		Body:   body,
	}
	out.Header.Del("Content-Length")
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	return out, nil
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		if strings.EqualFold(k, "Host") || isHopHeader(k) {
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func isHopHeader(name string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

func cloneHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vs := range h {
		vv := make([]string, len(vs))
		copy(vv, vs)
		out[k] = vv
	}
	return out
}

func writeResponse(w http.ResponseWriter, resp originResponse) {
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if len(resp.Body) > 0 {
		w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func (s *Service) statsLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-t.C:
			s.logStats()
		}
	}
}

func (s *Service) logStats() {
	ss := s.stats.Snapshot()
	fields := []zap.Field{
		zap.Uint64("responses", ss.TotalResponses),
		zap.String("respMin", formatBytes(ss.MinRespBytes)),
		zap.String("respAvg", formatBytes(ss.AvgRespBytes)),
		zap.String("respMax", formatBytes(ss.MaxRespBytes)),
		zap.Int("journalRecords", s.journal.RecordCount()),
		zap.String("journalSize", formatBytes(uint64(s.journal.TotalSize()))),
	}
	if mem, ok := processMemory(); ok {
		fields = append(fields,
			zap.String("rss", formatBytes(mem.RSS)),
			zap.String("rssPeak", formatBytes(mem.Peak)))
	}
	s.log.Info("stats", fields...)
}

// Shutdown closes the service and gives up waiting once ctx is done.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
