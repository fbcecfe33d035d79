package server

import (
	"net/http"

	"libraryapi/internal/app"
	"libraryapi/pkg/domain"
)

type loanRequest struct {
	ISBN     string `json:"isbn" validate:"notblank"`
	Customer string `json:"customer" validate:"notblank"`
}

type returnLoanRequest struct {
	Returned *bool `json:"returned" validate:"required"`
}

type loanResponse struct {
	ID        uint64      `json:"loanId"`
	Book      domain.Book `json:"book"`
	Customer  string      `json:"customer"`
	LocalDate string      `json:"localDate"`
	Returned  *bool       `json:"returned"`
}

func toLoanResponse(l domain.Loan) loanResponse {
	return loanResponse{
		ID:        l.ID,
		Book:      l.Book,
		Customer:  l.Customer,
		LocalDate: l.LocalDate.Format("2006-01-02"),
		Returned:  l.Returned,
	}
}

// handleCreateLoan responds with the bare id of the new loan.
func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrors(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msgs := s.validator.Check(req); len(msgs) > 0 {
		writeErrors(w, http.StatusBadRequest, msgs...)
		return
	}
	book, found, err := s.app.Books.GetByISBN(r.Context(), req.ISBN)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !found {
		writeAppError(w, r, app.ErrISBNNotFound)
		return
	}
	loan, err := s.app.Loans.Save(r.Context(), domain.Loan{Book: book, Customer: req.Customer})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan.ID)
}

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErrors(w, http.StatusBadRequest, "invalid id")
		return
	}
	loan, found, err := s.app.Loans.FindByID(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !found {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponse(loan))
}

func (s *Server) handleReturnLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErrors(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req returnLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrors(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msgs := s.validator.Check(req); len(msgs) > 0 {
		writeErrors(w, http.StatusBadRequest, msgs...)
		return
	}
	loan, found, err := s.app.Loans.FindByID(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !found {
		writeNotFound(w)
		return
	}
	loan.Returned = req.Returned
	if _, err := s.app.Loans.Update(r.Context(), loan); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
