package chi

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/casequery/internal/domain"
	"github.com/kailas-cloud/casequery/internal/domain/search/result"
	domusage "github.com/kailas-cloud/casequery/internal/domain/usage"
	"github.com/kailas-cloud/casequery/internal/logger"
	healthuc "github.com/kailas-cloud/casequery/internal/usecase/health"
	searchuc "github.com/kailas-cloud/casequery/internal/usecase/search"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// Error codes returned in ErrorResponse.Code.
const (
	codeBadRequest    = "bad_request"
	codeEngineError   = "engine_error"
	codeInternalError = "internal_error"
	codeUnauthorized  = "unauthorized"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the search page and the JSON API.
type Server struct {
	search        Searcher
	usage         UsageReporter
	health        HealthChecker
	page          *template.Template
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP server. usage can be nil when no generator budget is configured.
func NewServer(search Searcher, usage UsageReporter, health HealthChecker, logger *zap.Logger) (*Server, error) {
	page, err := parsePage()
	if err != nil {
		return nil, err
	}
	return &Server{
		search: search,
		usage:  usage,
		health: health,
		page:   page,
		logger: logger,
		errorHandlers: []errorHandler{
			engineErrorHandler,
		},
	}, nil
}

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query   string `json:"query"`
	Session string `json:"session"`
}

// SearchHit is one result in SearchResponse.
type SearchHit struct {
	Score       float64  `json:"score"`
	Date        string   `json:"date"`
	CaseName    string   `json:"case_name"`
	DocumentURL string   `json:"document_url"`
	Snippets    []string `json:"snippets"`
}

// SearchResponse is the body returned by POST /api/v1/search.
type SearchResponse struct {
	Hits      []SearchHit `json:"hits"`
	Total     int         `json:"total"`
	Corrected string      `json:"corrected,omitempty"`
	Session   string      `json:"session"`
	Queries   []string    `json:"queries"`
	Degraded  bool        `json:"degraded"`
}

// UsageResponse is the body returned by GET /api/v1/usage.
type UsageResponse struct {
	Period        string       `json:"period"`
	Provider      string       `json:"provider"`
	TokensUsed    int64        `json:"tokens_used"`
	Budget        BudgetStatus `json:"budget"`
	PeriodStartAt *time.Time   `json:"period_start_at,omitempty"`
	PeriodEndAt   *time.Time   `json:"period_end_at,omitempty"`
}

// BudgetStatus is the budget part of UsageResponse.
type BudgetStatus struct {
	TokensLimit     int64      `json:"tokens_limit"`
	TokensRemaining int64      `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APISearch handles POST /api/v1/search.
func (s *Server) APISearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	page, err := s.search.Search(ctx, searchuc.Request{Query: req.Query, Session: req.Session})
	setGenerationHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := SearchResponse{
		Hits:      make([]SearchHit, len(page.Hits)),
		Total:     page.Total,
		Corrected: page.Corrected,
		Session:   page.Session,
		Queries:   page.Queries,
		Degraded:  page.Degraded,
	}
	if resp.Queries == nil {
		resp.Queries = []string{}
	}
	for i, h := range page.Hits {
		resp.Hits[i] = hitToAPI(h)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetUsage handles GET /api/v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		writeError(w, http.StatusNotFound, codeBadRequest, "usage reporting is not configured")
		return
	}
	report := s.usage.GetReport(r.Context(), domusage.ParsePeriod(r.URL.Query().Get("period")))

	resp := UsageResponse{
		Period:     string(report.Period()),
		Provider:   report.Provider(),
		TokensUsed: report.TokensUsed(),
		Budget: BudgetStatus{
			TokensLimit:     report.Budget().TokensLimit(),
			TokensRemaining: report.Budget().TokensRemaining(),
			IsExhausted:     report.Budget().IsExhausted(),
		},
	}
	if report.PeriodStart() > 0 {
		start := time.UnixMilli(report.PeriodStart()).UTC()
		end := time.UnixMilli(report.PeriodEnd()).UTC()
		resp.PeriodStartAt = &start
		resp.PeriodEndAt = &end
	}
	if report.Budget().ResetsAt() > 0 {
		resetsAt := time.UnixMilli(report.Budget().ResetsAt()).UTC()
		resp.Budget.ResetsAt = &resetsAt
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func hitToAPI(h result.SearchHit) SearchHit {
	snippets := h.Snippets()
	if snippets == nil {
		snippets = []string{}
	}
	return SearchHit{
		Score:       h.Score(),
		Date:        h.Date(),
		CaseName:    h.CaseName(),
		DocumentURL: h.DocumentURL(),
		Snippets:    snippets,
	}
}

func setGenerationHeaders(w http.ResponseWriter, usage *domain.GenerationUsage) {
	if usage != nil && usage.Calls > 0 {
		w.Header().Set("X-Generation-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// engineErrorHandler maps engine failures to 502 without leaking the engine's reason.
func engineErrorHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrEngine) {
		return false
	}
	writeError(w, http.StatusBadGateway, codeEngineError, domain.ErrEngine.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			s.handleDomainErrorLog(r, err, http.StatusBadGateway)
			return
		}
	}
	s.handleDomainErrorLog(r, err, http.StatusInternalServerError)
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// handleDomainErrorLog logs upstream failures at Warn and everything else at Error.
func (s *Server) handleDomainErrorLog(r *http.Request, err error, status int) {
	log := logger.FromContext(r.Context())
	if status == http.StatusInternalServerError {
		log.Error("internal error", zap.Error(err))
		return
	}
	log.Warn("domain error", zap.Error(err))
}

// statusFor returns the HTTP status handleDomainError would use for err.
func statusFor(err error) int {
	if errors.Is(err, domain.ErrEngine) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
