package http

import (
	"bytes"
	"net/http"
	"strconv"

	"splitpay/internal/export"
	applog "splitpay/internal/log"
)

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	name := sanitizeInput(r.PostForm.Get("name"))
	if err := s.ledger.AddMember(r.Context(), name); err != nil {
		s.fail(w, r, applog.OpAddMember, err)
		return
	}
	SeeOther(w, r, "/")
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	name := sanitizeInput(r.PostForm.Get("name"))
	if err := s.ledger.RemoveMember(r.Context(), name); err != nil {
		s.fail(w, r, applog.OpRemoveMember, err)
		return
	}
	SeeOther(w, r, "/")
}

func (s *Server) handleSetContractor(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	name := sanitizeInput(r.PostForm.Get("contractor"))
	if err := s.ledger.SetContractor(r.Context(), name); err != nil {
		s.fail(w, r, applog.OpSetContractor, err)
		return
	}
	SeeOther(w, r, "/")
}

func (s *Server) handleSetPaymentLink(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	link := sanitizeInput(r.PostForm.Get("payment_link"))
	if err := s.ledger.SetPaymentLink(r.Context(), link); err != nil {
		s.fail(w, r, applog.OpSetPaymentLink, err)
		return
	}
	SeeOther(w, r, "/")
}

func (s *Server) handleNextMonth(w http.ResponseWriter, r *http.Request) {
	month, err := s.ledger.AddNextMonth(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpAddMonth, err)
		return
	}
	s.logger.InfoContext(r.Context(), "Month added", applog.FieldMonth, month)
	SeeOther(w, r, "/")
}

func (s *Server) handleDeleteMonth(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	month := sanitizeInput(r.PostForm.Get("month"))
	if err := s.ledger.DeleteMonth(r.Context(), month); err != nil {
		s.fail(w, r, applog.OpDeleteMonth, err)
		return
	}
	SeeOther(w, r, "/")
}

// handleApplyTable rebuilds the ledger from the submitted checkbox table.
func (s *Server) handleApplyTable(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	months, rows, err := ParseTableForm(r.PostForm)
	if err != nil {
		s.fail(w, r, applog.OpApplyTable, err)
		return
	}
	changed, err := s.ledger.ApplyTable(r.Context(), months, rows)
	if err != nil {
		s.fail(w, r, applog.OpApplyTable, err)
		return
	}
	if changed {
		SeeOther(w, r, "/?ok=saved")
		return
	}
	SeeOther(w, r, "/")
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.SendNotice(r.Context()); err != nil {
		s.fail(w, r, applog.OpSendNotice, err)
		return
	}
	SeeOther(w, r, "/?ok=notice")
}

func (s *Server) handleSheetPull(w http.ResponseWriter, r *http.Request) {
	if _, err := s.ledger.PullSheet(r.Context()); err != nil {
		s.fail(w, r, applog.OpPullSheet, err)
		return
	}
	SeeOther(w, r, "/?ok=sheet")
}

// handleExport streams the payment table as an xlsx workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	dash := s.ledger.Dashboard(r.Context())

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, dash.Summary); err != nil {
		s.logger.ErrorContext(r.Context(), "Export failed", applog.FieldOperation, applog.OpExport, applog.FieldError, err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="splitpay-`+string(dash.Current)+`.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
