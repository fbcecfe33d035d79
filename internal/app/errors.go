package app

import (
	"errors"
	"fmt"
)

// BusinessError is a broken library rule. The message is user facing and the
// caller may correct its input and retry.
type BusinessError struct {
	msg string
}

func (e *BusinessError) Error() string { return e.msg }

var (
	ErrDuplicateISBN     = &BusinessError{msg: "ISBN já cadastrado"}
	ErrBookAlreadyLoaned = &BusinessError{msg: "Book already loaned"}
	ErrISBNNotFound      = &BusinessError{msg: "ISBN not found!!"}

	// ErrInvalidArgument is returned when the caller passes a request the
	// service cannot act on, such as a delete without an id.
	ErrInvalidArgument = errors.New("ID cannot be null!!")
)

// NotFoundError reports that the referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("The %s with id %d does not exists", e.Entity, e.ID)
}

// EntityInUseError reports a delete rejected because other records still
// reference the entity.
type EntityInUseError struct {
	Entity string
	ID     uint64
}

func (e *EntityInUseError) Error() string {
	return fmt.Sprintf("%s with id %d cannot be deleted, because it's in use", e.Entity, e.ID)
}
