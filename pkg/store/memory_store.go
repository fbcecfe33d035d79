package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"libraryapi/pkg/domain"
)

// MemoryStore keeps books and loans in-process. It enforces the same
// constraints as the SQL schema: unique ISBN, one active loan per book and
// no deletion of a book that loans still reference.
type MemoryStore struct {
	mu       sync.RWMutex
	books    map[uint64]domain.Book
	isbn     map[string]uint64
	loans    map[uint64]domain.Loan
	nextBook uint64
	nextLoan uint64
	now      func() time.Time
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books: make(map[uint64]domain.Book),
		isbn:  make(map[string]uint64),
		loans: make(map[uint64]domain.Loan),
		now:   time.Now,
	}
}

// SetClock overrides the clock used to stamp new loans.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) ExistsByISBN(_ context.Context, isbn string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.isbn[isbn]
	return ok, nil
}

func (m *MemoryStore) SaveBook(_ context.Context, b domain.Book) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner, ok := m.isbn[b.ISBN]; ok && owner != b.ID {
		return domain.Book{}, ErrDuplicate
	}
	if b.ID == 0 {
		m.nextBook++
		b.ID = m.nextBook
	} else {
		prev, ok := m.books[b.ID]
		if !ok {
			return domain.Book{}, ErrNotFound
		}
		delete(m.isbn, prev.ISBN)
	}
	m.books[b.ID] = b
	m.isbn[b.ISBN] = b.ID
	return b, nil
}

func (m *MemoryStore) GetBook(_ context.Context, id uint64) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

func (m *MemoryStore) GetBookByISBN(_ context.Context, isbn string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.isbn[isbn]
	if !ok {
		return domain.Book{}, false, nil
	}
	return m.books[id], true, nil
}

func (m *MemoryStore) DeleteBook(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return ErrNotFound
	}
	for _, l := range m.loans {
		if l.Book.ID == id {
			return ErrForeignKey
		}
	}
	delete(m.books, id)
	delete(m.isbn, b.ISBN)
	return nil
}

func (m *MemoryStore) FilterBooks(_ context.Context, filter domain.BookFilter, page domain.PageRequest) (domain.Page[domain.Book], error) {
	page = page.Normalize()
	m.mu.RLock()
	matched := make([]domain.Book, 0, len(m.books))
	for _, b := range m.books {
		if matchesFilter(b, filter) {
			matched = append(matched, b)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		c := compareBooks(matched[i], matched[j], page.SortField)
		if page.SortDir == domain.SortDesc {
			c = -c
		}
		if c == 0 {
			return matched[i].ID < matched[j].ID
		}
		return c < 0
	})

	total := int64(len(matched))
	start := page.Offset()
	if start < 0 || start > len(matched) {
		start = len(matched)
	}
	end := start + page.Size
	if end > len(matched) {
		end = len(matched)
	}
	content := append([]domain.Book(nil), matched[start:end]...)
	return domain.NewPage(content, page, total), nil
}

func matchesFilter(b domain.Book, f domain.BookFilter) bool {
	if f.IsEmpty() {
		return true
	}
	contains := func(field, want string) bool {
		return want != "" && strings.Contains(strings.ToLower(field), strings.ToLower(want))
	}
	return contains(b.Title, f.Title) || contains(b.Author, f.Author) || contains(b.ISBN, f.ISBN)
}

func compareBooks(a, b domain.Book, field string) int {
	c := 0
	switch field {
	case "title":
		c = strings.Compare(a.Title, b.Title)
	case "author":
		c = strings.Compare(a.Author, b.Author)
	case "isbn":
		c = strings.Compare(a.ISBN, b.ISBN)
	}
	if c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

func (m *MemoryStore) ExistsActiveLoan(_ context.Context, bookID uint64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeLoanFor(bookID, 0), nil
}

// activeLoanFor reports an active loan on bookID other than the one with id skip.
func (m *MemoryStore) activeLoanFor(bookID, skip uint64) bool {
	for _, l := range m.loans {
		if l.ID != skip && l.Book.ID == bookID && l.Active() {
			return true
		}
	}
	return false
}

func (m *MemoryStore) SaveLoan(_ context.Context, l domain.Loan) (domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[l.Book.ID]
	if !ok {
		return domain.Loan{}, ErrForeignKey
	}
	if l.Active() && m.activeLoanFor(book.ID, l.ID) {
		return domain.Loan{}, ErrDuplicate
	}
	l.Book = book
	if l.ID == 0 {
		m.nextLoan++
		l.ID = m.nextLoan
		l.LocalDate = today(m.now())
	} else {
		prev, ok := m.loans[l.ID]
		if !ok {
			return domain.Loan{}, ErrNotFound
		}
		l.LocalDate = prev.LocalDate
	}
	if l.Returned != nil {
		returned := *l.Returned
		l.Returned = &returned
	}
	m.loans[l.ID] = l
	return l, nil
}

func (m *MemoryStore) GetLoan(_ context.Context, id uint64) (domain.Loan, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.loans[id]
	if !ok {
		return domain.Loan{}, false, nil
	}
	l.Book = m.books[l.Book.ID]
	if l.Returned != nil {
		returned := *l.Returned
		l.Returned = &returned
	}
	return l, true, nil
}
