package utils

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var ErrValidation = errors.New("validation")

const mysqlErrDuplicateEntry = 1062

// IsDuplicateKeyError reports whether err is a MySQL unique-constraint violation.
func IsDuplicateKeyError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDuplicateEntry
	}
	return false
}
