package app

import (
	"context"
	"errors"
	"fmt"

	"libraryapi/pkg/domain"
	"libraryapi/pkg/store"
)

// LoanService enforces the one-active-loan-per-book rule on top of a LoanStore.
type LoanService struct {
	store store.LoanStore
}

func NewLoanService(s store.LoanStore) *LoanService {
	return &LoanService{store: s}
}

// Save opens a loan. The store assigns the id and the loan date.
func (s *LoanService) Save(ctx context.Context, loan domain.Loan) (domain.Loan, error) {
	active, err := s.store.ExistsActiveLoan(ctx, loan.Book.ID)
	if err != nil {
		return domain.Loan{}, fmt.Errorf("check active loan: %w", err)
	}
	if active {
		return domain.Loan{}, ErrBookAlreadyLoaned
	}
	loan.ID = 0
	saved, err := s.store.SaveLoan(ctx, loan)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return domain.Loan{}, ErrBookAlreadyLoaned
	case errors.Is(err, store.ErrForeignKey):
		return domain.Loan{}, &NotFoundError{Entity: "Book", ID: loan.Book.ID}
	case err != nil:
		return domain.Loan{}, fmt.Errorf("save loan: %w", err)
	}
	return saved, nil
}

// FindByID returns false when no loan has the id.
func (s *LoanService) FindByID(ctx context.Context, id uint64) (domain.Loan, bool, error) {
	return s.store.GetLoan(ctx, id)
}

// Update writes the full state of a loan the caller already fetched.
func (s *LoanService) Update(ctx context.Context, loan domain.Loan) (domain.Loan, error) {
	saved, err := s.store.SaveLoan(ctx, loan)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.Loan{}, &NotFoundError{Entity: "Loan", ID: loan.ID}
	case errors.Is(err, store.ErrDuplicate):
		return domain.Loan{}, ErrBookAlreadyLoaned
	case err != nil:
		return domain.Loan{}, fmt.Errorf("update loan %d: %w", loan.ID, err)
	}
	return saved, nil
}
