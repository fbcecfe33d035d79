package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"libraryapi/pkg/domain"
	"libraryapi/pkg/store"
)

func newLoanFixture(t *testing.T) (*LoanService, domain.Book, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	book, err := NewBookService(s).Save(context.Background(), domain.Book{Title: "T", Author: "A", ISBN: "1"})
	if err != nil {
		t.Fatalf("save book: %v", err)
	}
	return NewLoanService(s), book, s
}

func TestLoanServiceSave(t *testing.T) {
	svc, book, s := newLoanFixture(t)
	fixed := time.Date(2024, time.March, 5, 15, 30, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })
	ctx := context.Background()

	loan, err := svc.Save(ctx, domain.Loan{Book: book, Customer: "C"})
	if err != nil {
		t.Fatalf("save loan: %v", err)
	}
	if loan.ID == 0 || loan.Customer != "C" || loan.Book.ID != book.ID {
		t.Fatalf("unexpected loan: %+v", loan)
	}
	if want := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC); !loan.LocalDate.Equal(want) {
		t.Fatalf("loan date = %v, want %v", loan.LocalDate, want)
	}

	_, err = svc.Save(ctx, domain.Loan{Book: book, Customer: "D"})
	if !errors.Is(err, ErrBookAlreadyLoaned) {
		t.Fatalf("expected ErrBookAlreadyLoaned, got %v", err)
	}
	if err.Error() != "Book already loaned" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestLoanServiceAtMostOneActiveLoan(t *testing.T) {
	svc, book, _ := newLoanFixture(t)
	ctx := context.Background()
	returned := true
	notReturned := false

	first, err := svc.Save(ctx, domain.Loan{Book: book, Customer: "C", Returned: &notReturned})
	if err != nil {
		t.Fatalf("first loan: %v", err)
	}
	if _, err := svc.Save(ctx, domain.Loan{Book: book, Customer: "D"}); !errors.Is(err, ErrBookAlreadyLoaned) {
		t.Fatalf("returned=false must block a new loan, got %v", err)
	}

	first.Returned = &returned
	if _, err := svc.Update(ctx, first); err != nil {
		t.Fatalf("return loan: %v", err)
	}
	second, err := svc.Save(ctx, domain.Loan{Book: book, Customer: "D"})
	if err != nil {
		t.Fatalf("loan after return: %v", err)
	}

	// Reopening the first loan would create two active loans.
	first.Returned = nil
	if _, err := svc.Update(ctx, first); !errors.Is(err, ErrBookAlreadyLoaned) {
		t.Fatalf("expected ErrBookAlreadyLoaned reopening loan, got %v", err)
	}
	if got, _, _ := svc.FindByID(ctx, second.ID); !got.Active() {
		t.Fatalf("second loan should stay active")
	}
}

func TestLoanServiceFindAndUpdate(t *testing.T) {
	svc, book, _ := newLoanFixture(t)
	ctx := context.Background()

	if _, ok, err := svc.FindByID(ctx, 99); err != nil || ok {
		t.Fatalf("expected empty result, ok=%v err=%v", ok, err)
	}

	loan, err := svc.Save(ctx, domain.Loan{Book: book, Customer: "C"})
	if err != nil {
		t.Fatalf("save loan: %v", err)
	}
	found, ok, err := svc.FindByID(ctx, loan.ID)
	if err != nil || !ok {
		t.Fatalf("find loan: ok=%v err=%v", ok, err)
	}
	if found.Returned != nil || found.Book.ISBN != "1" || !found.LocalDate.Equal(loan.LocalDate) {
		t.Fatalf("unexpected loan: %+v", found)
	}

	returned := true
	found.Returned = &returned
	updated, err := svc.Update(ctx, found)
	if err != nil {
		t.Fatalf("update loan: %v", err)
	}
	if updated.Returned == nil || !*updated.Returned {
		t.Fatalf("expected returned loan, got %+v", updated)
	}
	if !updated.LocalDate.Equal(loan.LocalDate) {
		t.Fatalf("loan date must not change on update")
	}

	var notFound *NotFoundError
	if _, err := svc.Update(ctx, domain.Loan{ID: 42, Book: book, Customer: "C", Returned: &returned}); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError updating missing loan, got %v", err)
	}
}

func TestLoanServiceSaveUnknownBook(t *testing.T) {
	svc, _, _ := newLoanFixture(t)
	var notFound *NotFoundError
	if _, err := svc.Save(context.Background(), domain.Loan{Book: domain.Book{ID: 77}, Customer: "C"}); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError for unknown book, got %v", err)
	}
}
