package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"splitpay/internal/core"
	applog "splitpay/internal/log"
	"splitpay/internal/services"
)

// flashMessages are the confirmations selectable through ?ok=.
var flashMessages = map[string]string{
	"notice": "Notice sent to the chat.",
	"sheet":  "Table pulled from the spreadsheet.",
	"saved":  "Changes saved.",
}

type indexView struct {
	services.Dashboard
	Table         core.Table
	Notice        string
	Error         string
	Flash         string
	NotifyEnabled bool
	SheetEnabled  bool
}

type loginView struct {
	Error string
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	health := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	flash := flashMessages[r.URL.Query().Get("ok")]
	s.renderIndex(w, r, http.StatusOK, "", flash)
}

// renderIndex draws the dashboard, optionally with an inline error.
func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, errMsg, flash string) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			applog.FieldComponent, applog.ComponentTemplate)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	dash := s.ledger.Dashboard(r.Context())
	view := indexView{
		Dashboard:     dash,
		Table:         dash.Table(),
		Notice:        dash.Notice(),
		Error:         errMsg,
		Flash:         flash,
		NotifyEnabled: s.notifyEnabled,
		SheetEnabled:  s.sheetEnabled,
	}
	if dash.ReadOnly && view.Error == "" {
		view.Error = "Stored data could not be read. Showing defaults; changes are disabled."
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, "index.html", view); err != nil {
		s.logger.ErrorContext(r.Context(), "Index template execution failed",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpRender)
	}
}

func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, "login.html", loginView{Error: errMsg}); err != nil {
		s.logger.ErrorContext(r.Context(), "Login template execution failed", applog.FieldError, err)
	}
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessions.Lookup(r); err == nil {
		SeeOther(w, r, "/")
		return
	}
	s.renderLogin(w, r, http.StatusOK, "")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	if err := s.gate.Check(r.PostForm.Get("password")); err != nil {
		s.metrics.LoginAttempts.WithLabelValues("failure").Inc()
		s.logger.WarnContext(r.Context(), "Login failed",
			applog.FieldClientIP, s.clientIP.Extract(r),
			applog.FieldComponent, applog.ComponentAuth)
		s.renderLogin(w, r, http.StatusUnauthorized, "Wrong password.")
		return
	}

	sess, err := s.sessions.Start(w, r)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to start session", applog.FieldError, err)
		http.Error(w, "could not start session", http.StatusInternalServerError)
		return
	}
	s.metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.logger.InfoContext(r.Context(), "Login succeeded",
		"session_id", sess.ID,
		"expires_at", sess.ExpiresAt.Format(time.RFC3339))
	SeeOther(w, r, "/")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.End(w, r)
	SeeOther(w, r, "/login")
}

// fail turns a service error into a response. Domain errors re-render the page
// with the message inline.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case isDomainError(err):
		s.renderIndex(w, r, http.StatusUnprocessableEntity, err.Error(), "")
	case errors.Is(err, services.ErrStateUnavailable):
		s.renderIndex(w, r, http.StatusServiceUnavailable, err.Error(), "")
	default:
		// The request-scoped logger carries the request ID set by the tracer.
		applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(),
			"Request failed", err, applog.ComponentHTTP, op,
			applog.NewFields().WithClientIP(s.clientIP.Extract(r)))
		InternalServerError("The request could not be completed.").Write(w)
	}
}

var domainErrors = []error{
	core.ErrInvalidMonthKey,
	core.ErrEmptyMember,
	core.ErrMemberTooLong,
	core.ErrMemberExists,
	core.ErrUnknownMember,
	core.ErrContractorRemoval,
	core.ErrMonthExists,
	core.ErrUnknownMonth,
	core.ErrInvalidPaymentLink,
	services.ErrNotifierDisabled,
	services.ErrSheetDisabled,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
