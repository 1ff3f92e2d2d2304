package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrDuplicate is returned when a unique index rejects a write
var ErrDuplicate = errors.New("duplicate record")

// translate maps driver errors onto repository errors
func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}
