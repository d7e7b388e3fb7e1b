package repo

import "errors"

// Ошибки хранилища.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState — операция невозможна с такими данными.
	ErrInvalidState = errors.New("invalid state")
)
