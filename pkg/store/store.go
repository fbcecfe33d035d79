package store

import (
	"context"
	"errors"

	"libraryapi/pkg/domain"
)

var (
	// ErrNotFound is returned when a mutation targets a row that does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrForeignKey is returned when a delete is blocked by a dependent row.
	ErrForeignKey = errors.New("record is referenced by another record")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// BookStore defines persistence operations for books.
type BookStore interface {
	ExistsByISBN(ctx context.Context, isbn string) (bool, error)
	// SaveBook inserts when ID is zero and updates otherwise.
	SaveBook(ctx context.Context, b domain.Book) (domain.Book, error)
	GetBook(ctx context.Context, id uint64) (domain.Book, bool, error)
	GetBookByISBN(ctx context.Context, isbn string) (domain.Book, bool, error)
	DeleteBook(ctx context.Context, id uint64) error
	FilterBooks(ctx context.Context, filter domain.BookFilter, page domain.PageRequest) (domain.Page[domain.Book], error)
}

// LoanStore defines persistence operations for loans.
type LoanStore interface {
	// ExistsActiveLoan reports whether the book has a loan that is not returned.
	ExistsActiveLoan(ctx context.Context, bookID uint64) (bool, error)
	// SaveLoan inserts when ID is zero and updates otherwise. Inserts stamp
	// LocalDate with the current date.
	SaveLoan(ctx context.Context, l domain.Loan) (domain.Loan, error)
	GetLoan(ctx context.Context, id uint64) (domain.Loan, bool, error)
}

// Store combines every persistence capability of the library.
type Store interface {
	BookStore
	LoanStore
	Close() error
}
