package store

import (
	"time"

	"gorm.io/gorm"
)

// GORM models used for persistence.
type BookModel struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	Title  string `gorm:"not null"`
	Author string `gorm:"not null"`
	ISBN   string `gorm:"column:isbn;not null;uniqueIndex:idx_books_isbn"`
}

func (BookModel) TableName() string { return "books" }

type LoanModel struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	BookID    uint64    `gorm:"not null;index"`
	Book      BookModel `gorm:"foreignKey:BookID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Customer  string    `gorm:"not null"`
	LocalDate time.Time `gorm:"type:date;not null"`
	Returned  *bool
}

func (LoanModel) TableName() string { return "loans" }

// BeforeCreate stamps the loan with the current calendar date.
func (m *LoanModel) BeforeCreate(tx *gorm.DB) error {
	m.LocalDate = today(time.Now())
	return nil
}

func today(now time.Time) time.Time {
	y, mo, d := now.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
