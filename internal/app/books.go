package app

import (
	"context"
	"errors"
	"fmt"

	"libraryapi/pkg/domain"
	"libraryapi/pkg/store"
)

// BookService enforces the book rules on top of a BookStore.
type BookService struct {
	store store.BookStore
}

func NewBookService(s store.BookStore) *BookService {
	return &BookService{store: s}
}

// Save stores a new book. ISBNs are compared exactly, case included.
func (s *BookService) Save(ctx context.Context, book domain.Book) (domain.Book, error) {
	exists, err := s.store.ExistsByISBN(ctx, book.ISBN)
	if err != nil {
		return domain.Book{}, fmt.Errorf("check isbn: %w", err)
	}
	if exists {
		return domain.Book{}, ErrDuplicateISBN
	}
	saved, err := s.store.SaveBook(ctx, book)
	if errors.Is(err, store.ErrDuplicate) {
		// lost the race against a concurrent save of the same ISBN
		return domain.Book{}, ErrDuplicateISBN
	}
	if err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return saved, nil
}

// Update persists the current state of an existing book.
func (s *BookService) Update(ctx context.Context, book domain.Book) (domain.Book, error) {
	if book.ID == 0 {
		return domain.Book{}, ErrInvalidArgument
	}
	saved, err := s.store.SaveBook(ctx, book)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.Book{}, &NotFoundError{Entity: "Book", ID: book.ID}
	case errors.Is(err, store.ErrDuplicate):
		return domain.Book{}, ErrDuplicateISBN
	case err != nil:
		return domain.Book{}, fmt.Errorf("update book: %w", err)
	}
	return saved, nil
}

// FindByID returns false when no book has the id.
func (s *BookService) FindByID(ctx context.Context, id uint64) (domain.Book, bool, error) {
	return s.store.GetBook(ctx, id)
}

// GetByISBN returns false when no book has exactly this ISBN.
func (s *BookService) GetByISBN(ctx context.Context, isbn string) (domain.Book, bool, error) {
	return s.store.GetBookByISBN(ctx, isbn)
}

// Filter returns the requested page of books matching the template.
func (s *BookService) Filter(ctx context.Context, filter domain.BookFilter, page domain.PageRequest) (domain.Page[domain.Book], error) {
	return s.store.FilterBooks(ctx, filter, page.Normalize())
}

// Delete removes a book that no loan references.
func (s *BookService) Delete(ctx context.Context, book *domain.Book) error {
	if book == nil || book.ID == 0 {
		return ErrInvalidArgument
	}
	err := s.store.DeleteBook(ctx, book.ID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return &NotFoundError{Entity: "Book", ID: book.ID}
	case errors.Is(err, store.ErrForeignKey):
		return &EntityInUseError{Entity: "Book", ID: book.ID}
	default:
		return fmt.Errorf("delete book %d: %w", book.ID, err)
	}
}
