package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"libraryapi/pkg/domain"
)

const migrateLockID int64 = 51120417

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// activeLoanIndex keeps at most one unreturned loan per book.
const activeLoanIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_loans_active_book
ON loans (book_id) WHERE returned IS NULL OR returned = FALSE`

type GormStoreOptions struct {
	Driver        string
	SlowThreshold time.Duration
}

type GormStoreOption func(*GormStoreOptions)

// WithDriver selects the SQL dialect ("postgres" or "sqlite").
func WithDriver(driver string) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.Driver = driver
	}
}

// WithSlowThreshold sets the duration after which queries are logged as slow.
func WithSlowThreshold(d time.Duration) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.SlowThreshold = d
	}
}

// GormStore implements Store using GORM over Postgres or SQLite.
type GormStore struct {
	db     *gorm.DB
	driver string
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{Driver: DriverPostgres, SlowThreshold: time.Second}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database dsn required")
	}

	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case DriverPostgres, "":
		opts.Driver = DriverPostgres
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		opts.Driver = DriverSQLite
		dialector = sqlite.Open(sqliteDSN(dsn))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	gormLog := gormlogger.New(
		slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             opts.SlowThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if opts.Driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql db: %w", err)
		}
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	}

	migrate := func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&BookModel{}, &LoanModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(activeLoanIndex).Error; err != nil {
			return fmt.Errorf("ensure active loan index: %w", err)
		}
		return nil
	}
	if opts.Driver == DriverPostgres {
		err = withMigrationLock(db, migrate)
	} else {
		err = migrate(db)
	}
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db, driver: opts.Driver}, nil
}

// sqliteDSN turns on foreign keys and a busy timeout for every connection.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ExistsByISBN checks for a book with exactly this ISBN.
func (s *GormStore) ExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&BookModel{}).Where("isbn = ?", isbn).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// SaveBook inserts a new book or updates an existing one.
func (s *GormStore) SaveBook(ctx context.Context, b domain.Book) (domain.Book, error) {
	model := bookToModel(b)
	db := s.db.WithContext(ctx)
	if model.ID == 0 {
		if err := db.Create(&model).Error; err != nil {
			return domain.Book{}, translateError(err)
		}
		return bookFromModel(model), nil
	}
	res := db.Model(&BookModel{ID: model.ID}).
		Select("title", "author", "isbn").
		Updates(&model)
	if res.Error != nil {
		return domain.Book{}, translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Book{}, ErrNotFound
	}
	return bookFromModel(model), nil
}

// GetBook returns a book by ID.
func (s *GormStore) GetBook(ctx context.Context, id uint64) (domain.Book, bool, error) {
	return s.firstBook(ctx, "id = ?", id)
}

// GetBookByISBN returns the book with exactly this ISBN.
func (s *GormStore) GetBookByISBN(ctx context.Context, isbn string) (domain.Book, bool, error) {
	return s.firstBook(ctx, "isbn = ?", isbn)
}

func (s *GormStore) firstBook(ctx context.Context, query string, arg any) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// DeleteBook removes a book. The delete runs in its own transaction so a
// foreign key rejection surfaces here instead of at a later commit.
func (s *GormStore) DeleteBook(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&BookModel{}, "id = ?", id)
		if res.Error != nil {
			return translateError(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// FilterBooks returns one page of books matching any non-empty filter field.
func (s *GormStore) FilterBooks(ctx context.Context, filter domain.BookFilter, page domain.PageRequest) (domain.Page[domain.Book], error) {
	page = page.Normalize()
	query := func() *gorm.DB {
		tx := s.db.WithContext(ctx).Model(&BookModel{})
		conds, args := bookFilterConditions(filter)
		if len(conds) > 0 {
			tx = tx.Where(strings.Join(conds, " OR "), args...)
		}
		return tx
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return domain.Page[domain.Book]{}, fmt.Errorf("count books: %w", err)
	}
	var models []BookModel
	if err := query().
		Order(page.OrderClause()).
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&models).Error; err != nil {
		return domain.Page[domain.Book]{}, fmt.Errorf("list books: %w", err)
	}
	books := make([]domain.Book, 0, len(models))
	for _, m := range models {
		books = append(books, bookFromModel(m))
	}
	return domain.NewPage(books, page, total), nil
}

func bookFilterConditions(filter domain.BookFilter) ([]string, []any) {
	var conds []string
	var args []any
	add := func(column, value string) {
		if value == "" {
			return
		}
		conds = append(conds, "LOWER("+column+") LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(strings.ToLower(value))+"%")
	}
	add("title", filter.Title)
	add("author", filter.Author)
	add("isbn", filter.ISBN)
	return conds, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ExistsActiveLoan reports whether the book has a loan with returned unset or false.
func (s *GormStore) ExistsActiveLoan(ctx context.Context, bookID uint64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&LoanModel{}).
		Where("book_id = ? AND (returned IS NULL OR returned = ?)", bookID, false).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SaveLoan inserts a new loan or overwrites an existing one.
func (s *GormStore) SaveLoan(ctx context.Context, l domain.Loan) (domain.Loan, error) {
	model := loanToModel(l)
	db := s.db.WithContext(ctx)
	if model.ID == 0 {
		if err := db.Omit("Book").Create(&model).Error; err != nil {
			return domain.Loan{}, translateError(err)
		}
	} else {
		res := db.Model(&LoanModel{ID: model.ID}).
			Select("book_id", "customer", "returned").
			Updates(&model)
		if res.Error != nil {
			return domain.Loan{}, translateError(res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.Loan{}, ErrNotFound
		}
	}
	saved, ok, err := s.GetLoan(ctx, model.ID)
	if err != nil {
		return domain.Loan{}, err
	}
	if !ok {
		return domain.Loan{}, ErrNotFound
	}
	return saved, nil
}

// GetLoan returns a loan with its book.
func (s *GormStore) GetLoan(ctx context.Context, id uint64) (domain.Loan, bool, error) {
	var model LoanModel
	if err := s.db.WithContext(ctx).Preload("Book").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Loan{}, false, nil
		}
		return domain.Loan{}, false, err
	}
	return loanFromModel(model), true, nil
}

// translateError maps constraint violations from either dialect onto the
// store sentinels; anything else is returned untouched.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", ErrForeignKey, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			return fmt.Errorf("%w: %v", ErrForeignKey, err)
		case "23505":
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "foreign key constraint"):
		return fmt.Errorf("%w: %v", ErrForeignKey, err)
	case strings.Contains(msg, "unique constraint"):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:     b.ID,
		Title:  b.Title,
		Author: b.Author,
		ISBN:   b.ISBN,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:     m.ID,
		Title:  m.Title,
		Author: m.Author,
		ISBN:   m.ISBN,
	}
}

func loanToModel(l domain.Loan) LoanModel {
	return LoanModel{
		ID:        l.ID,
		BookID:    l.Book.ID,
		Customer:  l.Customer,
		LocalDate: l.LocalDate,
		Returned:  l.Returned,
	}
}

func loanFromModel(m LoanModel) domain.Loan {
	return domain.Loan{
		ID:        m.ID,
		Book:      bookFromModel(m.Book),
		Customer:  m.Customer,
		LocalDate: m.LocalDate,
		Returned:  m.Returned,
	}
}
