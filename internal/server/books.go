package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"libraryapi/pkg/domain"
)

type bookRequest struct {
	Title  string `json:"title" validate:"notblank"`
	Author string `json:"author" validate:"notblank"`
	ISBN   string `json:"isbn" validate:"notblank"`
}

func (s *Server) decodeBook(w http.ResponseWriter, r *http.Request) (bookRequest, bool) {
	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrors(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	if msgs := s.validator.Check(req); len(msgs) > 0 {
		writeErrors(w, http.StatusBadRequest, msgs...)
		return req, false
	}
	return req, true
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeBook(w, r)
	if !ok {
		return
	}
	book, err := s.app.Books.Save(r.Context(), domain.Book{
		Title:  req.Title,
		Author: req.Author,
		ISBN:   req.ISBN,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErrors(w, http.StatusBadRequest, "invalid id")
		return
	}
	book, found, err := s.app.Books.FindByID(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !found {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// handleUpdateBook replaces title and author. The ISBN in the body must pass
// validation but is not applied.
func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErrors(w, http.StatusBadRequest, "invalid id")
		return
	}
	req, ok := s.decodeBook(w, r)
	if !ok {
		return
	}
	book, found, err := s.app.Books.FindByID(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !found {
		writeNotFound(w)
		return
	}
	book.Title = req.Title
	book.Author = req.Author
	updated, err := s.app.Books.Update(r.Context(), book)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeErrors(w, http.StatusBadRequest, "invalid id")
		return
	}
	book, found, err := s.app.Books.FindByID(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !found {
		writeNotFound(w)
		return
	}
	if err := s.app.Books.Delete(r.Context(), &book); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFilterBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := parsePageRequest(q.Get("page"), q.Get("size"), q.Get("sort"))
	if err != nil {
		writeErrors(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := domain.BookFilter{
		Title:  strings.TrimSpace(q.Get("title")),
		Author: strings.TrimSpace(q.Get("author")),
		ISBN:   strings.TrimSpace(q.Get("isbn")),
	}
	result, err := s.app.Books.Filter(r.Context(), filter, page)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parsePageRequest(pageRaw, sizeRaw, sort string) (domain.PageRequest, error) {
	page, err := parseQueryInt("page", pageRaw)
	if err != nil {
		return domain.PageRequest{}, err
	}
	size, err := parseQueryInt("size", sizeRaw)
	if err != nil {
		return domain.PageRequest{}, err
	}
	return domain.NewPageRequest(page, size, sort)
}

func parseQueryInt(name, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	return n, nil
}
