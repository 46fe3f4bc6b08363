package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eugenenazirov/oxido"
	"github.com/eugenenazirov/oxido/internal/diag"
	"github.com/eugenenazirov/oxido/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const (
	defaultProgramName    = "main.oxi"
	defaultRunTimeout     = 5 * time.Second
	defaultMaxSourceBytes = 64 << 10
	defaultMaxOutputBytes = 1 << 20
	defaultMaxSteps       = 1_000_000
)

// Handler runs playground programs and serves service metadata.
type Handler struct {
	programs *storage.ProgramStore
	logger   *zap.Logger

	clock func() time.Time
	newID func() string

	runTimeout     time.Duration
	maxSourceBytes int
	maxOutputBytes int
	maxSteps       int64
	maxCallDepth   int
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithIDGenerator overrides how run ids are produced, primarily for tests.
func WithIDGenerator(newID func() string) HandlerOption {
	return func(h *Handler) {
		h.newID = newID
	}
}

// WithProgramStore caches parsed programs across requests.
func WithProgramStore(store *storage.ProgramStore) HandlerOption {
	return func(h *Handler) {
		h.programs = store
	}
}

// WithHandlerLogger sets the logger handed to the interpreter.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithRunLimits bounds every program run. Zero values keep the defaults,
// except maxSteps where zero disables the step budget.
func WithRunLimits(timeout time.Duration, maxSourceBytes int, maxSteps int64, maxCallDepth int) HandlerOption {
	return func(h *Handler) {
		if timeout > 0 {
			h.runTimeout = timeout
		}
		if maxSourceBytes > 0 {
			h.maxSourceBytes = maxSourceBytes
		}
		if maxSteps >= 0 {
			h.maxSteps = maxSteps
		}
		if maxCallDepth > 0 {
			h.maxCallDepth = maxCallDepth
		}
	}
}

// WithMaxOutputBytes caps what a single run may print.
func WithMaxOutputBytes(n int) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxOutputBytes = n
		}
	}
}

// NewHandler constructs a Handler with the provided options.
func NewHandler(opts ...HandlerOption) *Handler {
	h := &Handler{
		logger: zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
		newID:          uuid.NewString,
		runTimeout:     defaultRunTimeout,
		maxSourceBytes: defaultMaxSourceBytes,
		maxOutputBytes: defaultMaxOutputBytes,
		maxSteps:       defaultMaxSteps,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	if h.programs != nil {
		stats := h.programs.Stats()
		resp.Cache = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, versionResponse{Version: oxido.Version()})
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	// room for the JSON envelope, escaping and stdin on top of the source
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxSourceBytes)*4+4096)

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Program too large", "request body exceeds the allowed size")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "Invalid request", "code must not be empty")
		return
	}
	if len(req.Code) > h.maxSourceBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "Program too large",
			fmt.Sprintf("code is %d bytes, the limit is %d", len(req.Code), h.maxSourceBytes),
			"Split the program or remove unused code")
		return
	}
	if req.Name == "" {
		req.Name = defaultProgramName
	}

	runID := h.newID()
	logger := h.logger.With(
		zap.String("run_id", runID),
		zap.String("request_id", requestIDFromContext(r.Context())),
	)

	ctx, cancel := context.WithTimeout(r.Context(), h.runTimeout)
	defer cancel()

	stdout := &cappedBuffer{limit: h.maxOutputBytes}
	var stderr strings.Builder
	opts := []oxido.EngineOption{
		oxido.WithStdout(stdout),
		oxido.WithStderr(&stderr),
		oxido.WithStdin(strings.NewReader(req.Stdin)),
		oxido.WithLogger(logger),
		oxido.WithColor(false),
		oxido.WithMaxSteps(h.maxSteps),
		oxido.WithMaxCallDepth(h.maxCallDepth),
	}
	if h.programs != nil {
		opts = append(opts, oxido.WithProgramCache(h.programs))
	}

	cfg := oxido.NewConfig(req.Debug, req.DryRun, req.Time)
	defer func() { _ = cfg.Free() }()

	report, err := oxido.NewEngine(opts...).Run(ctx, req.Name, req.Code, cfg)
	resp := runResponse{
		RunID:  runID,
		Output: stdout.String(),
		Stderr: stderr.String(),
	}
	if report != nil {
		resp.ExitCode = report.ExitCode
		resp.Executed = report.Executed
		resp.Cached = report.Cached
		resp.Timings = timingsFrom(report)
	}

	if err != nil {
		var d *diag.Diagnostic
		if !errors.As(err, &d) {
			writeInternalError(w, err)
			return
		}
		resp.Error = d.Message
		resp.Diagnostics = []diagnosticResponse{diagnosticFrom(req.Code, d)}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func timingsFrom(report *oxido.Report) timingsResponse {
	return timingsResponse{
		LexMicros:   report.Lex.Microseconds(),
		ParseMicros: report.Parse.Microseconds(),
		ExecMicros:  report.Exec.Microseconds(),
		TotalMicros: report.Total.Microseconds(),
	}
}

func diagnosticFrom(source string, d *diag.Diagnostic) diagnosticResponse {
	loc := diag.Locate(source, d.Span.Start)
	return diagnosticResponse{
		Code:    d.Code,
		Message: d.Message,
		Note:    d.Note,
		Line:    loc.Line,
		Column:  loc.Column,
		Start:   d.Span.Start,
		End:     d.Span.End,
	}
}

// cappedBuffer collects program output and fails writes past limit.
type cappedBuffer struct {
	buf   strings.Builder
	limit int
}

var errOutputLimit = errors.New("output limit exceeded")

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if c.buf.Len()+len(p) > c.limit {
		return 0, errOutputLimit
	}
	return c.buf.Write(p)
}

func (c *cappedBuffer) String() string {
	return c.buf.String()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type runRequest struct {
	Name   string `json:"name"`
	Code   string `json:"code"`
	Stdin  string `json:"stdin"`
	Debug  bool   `json:"debug"`
	DryRun bool   `json:"dryRun"`
	Time   bool   `json:"time"`
}

type runResponse struct {
	RunID       string               `json:"runId"`
	Output      string               `json:"output"`
	Stderr      string               `json:"stderr,omitempty"`
	ExitCode    int                  `json:"exitCode"`
	Executed    bool                 `json:"executed"`
	Cached      bool                 `json:"cached"`
	Error       string               `json:"error,omitempty"`
	Diagnostics []diagnosticResponse `json:"diagnostics,omitempty"`
	Timings     timingsResponse      `json:"timings"`
}

type diagnosticResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Note    string `json:"note"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

type timingsResponse struct {
	LexMicros   int64 `json:"lexUs"`
	ParseMicros int64 `json:"parseUs"`
	ExecMicros  int64 `json:"execUs"`
	TotalMicros int64 `json:"totalUs"`
}

type versionResponse struct {
	Version string `json:"version"`
}

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Cache     *storage.Stats `json:"cache,omitempty"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
