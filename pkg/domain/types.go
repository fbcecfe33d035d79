package domain

import "time"

type Book struct {
	ID     uint64 `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

// Loan records a book lent to a customer. Returned is tri-state: nil means
// the outcome was never set, and both nil and false count as an active loan.
type Loan struct {
	ID        uint64    `json:"loanId"`
	Book      Book      `json:"book"`
	Customer  string    `json:"customer"`
	LocalDate time.Time `json:"localDate"`
	Returned  *bool     `json:"returned"`
}

// Active reports whether the loan still holds its book.
func (l Loan) Active() bool {
	return l.Returned == nil || !*l.Returned
}

// BookFilter is a template for Book search. Empty fields are ignored; each
// set field is a case-insensitive substring match and fields are OR-ed.
type BookFilter struct {
	Title  string
	Author string
	ISBN   string
}

// IsEmpty reports whether no field of the template is set.
func (f BookFilter) IsEmpty() bool {
	return f.Title == "" && f.Author == "" && f.ISBN == ""
}
