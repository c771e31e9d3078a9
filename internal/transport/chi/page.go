package chi

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/casequery/internal/domain"
	"github.com/kailas-cloud/casequery/internal/usecase/results"
	searchuc "github.com/kailas-cloud/casequery/internal/usecase/search"
)

//go:embed templates/search.html
var templateFS embed.FS

func parsePage() (*template.Template, error) {
	t, err := template.New("search.html").
		Funcs(template.FuncMap{"snippet": results.RenderSnippet}).
		ParseFS(templateFS, "templates/search.html")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	return t, nil
}

// pageView is the data rendered by templates/search.html.
type pageView struct {
	Session   string
	Queries   string
	Corrected string
	// PriorSession lets "did you mean" replace the misspelled turn instead of narrowing it.
	PriorSession string
	Hits         []hitView
	Searched     bool
	Degraded     bool
	Error        string
}

type hitView struct {
	Score       string
	Date        string
	CaseName    string
	DocumentURL string
	Snippets    []string // raw fragments, rendered by the "snippet" template func
}

// Page handles GET / and POST /. GET with no query renders the empty page, which is
// also what the Reset button does. The session rides in a hidden form field.
func (s *Server) Page(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, http.StatusBadRequest, pageView{Error: "The request could not be read."})
		return
	}
	if r.Form.Has("reset") {
		s.renderPage(w, http.StatusOK, pageView{})
		return
	}

	prior := r.Form.Get("session")
	ctx, usage := domain.NewContextWithUsage(r.Context())
	page, err := s.search.Search(ctx, searchuc.Request{Query: r.Form.Get("query"), Session: prior})
	setGenerationHeaders(w, usage)
	if err != nil {
		s.handlePageError(w, r, err, prior)
		return
	}

	view := pageView{
		Session:      page.Session,
		Queries:      strings.Join(page.Queries, ", "),
		Corrected:    page.Corrected,
		PriorSession: prior,
		Searched:     page.Searched,
		Degraded:     page.Degraded,
		Hits:         make([]hitView, len(page.Hits)),
	}
	for i, h := range page.Hits {
		view.Hits[i] = hitView{
			Score:       fmt.Sprintf("%.4g", h.Score()),
			Date:        h.Date(),
			CaseName:    h.CaseName(),
			DocumentURL: h.DocumentURL(),
			Snippets:    h.Snippets(),
		}
	}
	s.renderPage(w, http.StatusOK, view)
}

// handlePageError renders the error page, keeping the prior session so the user can retry.
func (s *Server) handlePageError(w http.ResponseWriter, r *http.Request, err error, prior string) {
	status := statusFor(err)
	msg := "Something went wrong. Please try again."
	if status == http.StatusBadGateway {
		msg = "The search service is temporarily unavailable. Please try again."
	}
	s.handleDomainErrorLog(r, err, status)
	s.renderPage(w, status, pageView{Session: prior, Error: msg})
}

func (s *Server) renderPage(w http.ResponseWriter, status int, view pageView) {
	var b strings.Builder
	if err := s.page.Execute(&b, view); err != nil {
		s.logger.Error("render page", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(b.String()))
}
