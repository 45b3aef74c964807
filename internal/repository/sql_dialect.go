package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrDuplicateKey unique constraint violation
var ErrDuplicateKey = errors.New("duplicate key")

// dbDialectName returns the dialect name, sqlite by default.
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

// isDuplicateKeyError covers drivers that do not implement gorm's error translator.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") || // postgres
		strings.Contains(msg, "duplicate entry") // mysql
}

// wrapWriteError maps unique violations to ErrDuplicateKey.
func wrapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if isDuplicateKeyError(err) {
		return errors.Join(ErrDuplicateKey, err)
	}
	return err
}
