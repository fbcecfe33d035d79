package app

import (
	"context"
	"errors"
	"testing"

	"libraryapi/pkg/domain"
	"libraryapi/pkg/store"
)

// spyStore counts mutating calls and can inject failures.
type spyStore struct {
	*store.MemoryStore
	deletes   int
	deleteErr error
	existsErr error
	saveErr   error
}

func newSpyStore() *spyStore {
	return &spyStore{MemoryStore: store.NewMemoryStore()}
}

func (s *spyStore) DeleteBook(ctx context.Context, id uint64) error {
	s.deletes++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.MemoryStore.DeleteBook(ctx, id)
}

func (s *spyStore) ExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.MemoryStore.ExistsByISBN(ctx, isbn)
}

func (s *spyStore) SaveBook(ctx context.Context, b domain.Book) (domain.Book, error) {
	if s.saveErr != nil {
		return domain.Book{}, s.saveErr
	}
	return s.MemoryStore.SaveBook(ctx, b)
}

func TestBookServiceSave(t *testing.T) {
	svc := NewBookService(store.NewMemoryStore())
	ctx := context.Background()

	saved, err := svc.Save(ctx, domain.Book{Title: "T", Author: "A", ISBN: "1"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID == 0 || saved.Title != "T" || saved.Author != "A" || saved.ISBN != "1" {
		t.Fatalf("unexpected saved book: %+v", saved)
	}

	_, err = svc.Save(ctx, domain.Book{Title: "Other", Author: "B", ISBN: "1"})
	if !errors.Is(err, ErrDuplicateISBN) {
		t.Fatalf("expected ErrDuplicateISBN, got %v", err)
	}
	if err.Error() != "ISBN já cadastrado" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	var business *BusinessError
	if !errors.As(err, &business) {
		t.Fatalf("duplicate isbn must be a business error")
	}
}

func TestBookServiceSaveISBNIsCaseSensitive(t *testing.T) {
	svc := NewBookService(store.NewMemoryStore())
	ctx := context.Background()
	if _, err := svc.Save(ctx, domain.Book{Title: "T", Author: "A", ISBN: "abc"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := svc.Save(ctx, domain.Book{Title: "T", Author: "A", ISBN: "ABC"}); err != nil {
		t.Fatalf("isbn differing in case must be accepted: %v", err)
	}
}

func TestBookServiceSaveMapsStorageDuplicate(t *testing.T) {
	s := newSpyStore()
	s.saveErr = store.ErrDuplicate
	svc := NewBookService(s)
	if _, err := svc.Save(context.Background(), domain.Book{Title: "T", Author: "A", ISBN: "1"}); !errors.Is(err, ErrDuplicateISBN) {
		t.Fatalf("expected storage duplicate to map to ErrDuplicateISBN, got %v", err)
	}
}

func TestBookServiceSavePropagatesStorageFailure(t *testing.T) {
	boom := errors.New("connection reset")
	s := newSpyStore()
	s.existsErr = boom
	svc := NewBookService(s)
	if _, err := svc.Save(context.Background(), domain.Book{ISBN: "1"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
}

func TestBookServiceUpdateKeepsISBN(t *testing.T) {
	svc := NewBookService(store.NewMemoryStore())
	ctx := context.Background()
	saved, err := svc.Save(ctx, domain.Book{Title: "T", Author: "A", ISBN: "1"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	saved.Title = "T2"
	updated, err := svc.Update(ctx, saved)
	if err != nil {
		t.Fatalf("update own isbn must not be a duplicate: %v", err)
	}
	if updated.Title != "T2" || updated.ISBN != "1" || updated.ID != saved.ID {
		t.Fatalf("unexpected updated book: %+v", updated)
	}

	var notFound *NotFoundError
	if _, err := svc.Update(ctx, domain.Book{ID: 42, Title: "x", Author: "y", ISBN: "2"}); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if _, err := svc.Update(ctx, domain.Book{Title: "x"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestBookServiceFindByIDMissing(t *testing.T) {
	svc := NewBookService(store.NewMemoryStore())
	_, ok, err := svc.FindByID(context.Background(), 7)
	if err != nil || ok {
		t.Fatalf("expected empty result without error, ok=%v err=%v", ok, err)
	}
}

func TestBookServiceGetByISBN(t *testing.T) {
	svc := NewBookService(store.NewMemoryStore())
	ctx := context.Background()
	saved, _ := svc.Save(ctx, domain.Book{Title: "T", Author: "A", ISBN: "978-0"})

	got, ok, err := svc.GetByISBN(ctx, "978-0")
	if err != nil || !ok || got.ID != saved.ID {
		t.Fatalf("get by isbn: book=%+v ok=%v err=%v", got, ok, err)
	}
	if _, ok, _ := svc.GetByISBN(ctx, "978"); ok {
		t.Fatalf("isbn lookup must be exact")
	}
}

func TestBookServiceFilter(t *testing.T) {
	svc := NewBookService(store.NewMemoryStore())
	ctx := context.Background()
	for _, b := range []domain.Book{
		{Title: "The Adventures of Iago", Author: "Saito", ISBN: "1"},
		{Title: "Domain-Driven Design", Author: "Evans", ISBN: "2"},
	} {
		if _, err := svc.Save(ctx, b); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	page, err := svc.Filter(ctx, domain.BookFilter{Title: "Iago"}, domain.PageRequest{Page: 0, Size: 10})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if page.TotalElements != 1 || len(page.Content) != 1 || page.Content[0].Title != "The Adventures of Iago" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestBookServiceDeleteRejectsMissingID(t *testing.T) {
	s := newSpyStore()
	svc := NewBookService(s)
	ctx := context.Background()

	if err := svc.Delete(ctx, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nil book: expected ErrInvalidArgument, got %v", err)
	}
	if err := svc.Delete(ctx, &domain.Book{Title: "T"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("zero id: expected ErrInvalidArgument, got %v", err)
	}
	if s.deletes != 0 {
		t.Fatalf("expected no storage mutation, got %d deletes", s.deletes)
	}
}

func TestBookServiceDelete(t *testing.T) {
	s := store.NewMemoryStore()
	books := NewBookService(s)
	loans := NewLoanService(s)
	ctx := context.Background()

	free, _ := books.Save(ctx, domain.Book{Title: "Free", Author: "A", ISBN: "1"})
	lent, _ := books.Save(ctx, domain.Book{Title: "Lent", Author: "A", ISBN: "2"})
	if _, err := loans.Save(ctx, domain.Loan{Book: lent, Customer: "C"}); err != nil {
		t.Fatalf("save loan: %v", err)
	}

	if err := books.Delete(ctx, &free); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var notFound *NotFoundError
	err := books.Delete(ctx, &free)
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if err.Error() != "The Book with id 1 does not exists" {
		t.Fatalf("unexpected message: %q", err.Error())
	}

	var inUse *EntityInUseError
	err = books.Delete(ctx, &lent)
	if !errors.As(err, &inUse) {
		t.Fatalf("expected EntityInUseError, got %v", err)
	}
	if err.Error() != "Book with id 2 cannot be deleted, because it's in use" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if _, ok, _ := books.FindByID(ctx, lent.ID); !ok {
		t.Fatalf("book in use must remain")
	}
}

func TestBookServiceDeletePropagatesUnclassifiedError(t *testing.T) {
	boom := errors.New("disk full")
	s := newSpyStore()
	s.deleteErr = boom
	svc := NewBookService(s)
	err := svc.Delete(context.Background(), &domain.Book{ID: 3})
	if !errors.Is(err, boom) {
		t.Fatalf("expected unclassified error to propagate, got %v", err)
	}
	var inUse *EntityInUseError
	var notFound *NotFoundError
	if errors.As(err, &inUse) || errors.As(err, &notFound) {
		t.Fatalf("unexpected classification of %v", err)
	}
}
