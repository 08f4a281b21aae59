package storage

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	msqlite "modernc.org/sqlite"

	customErrors "github.com/segyhp/guild-ledger/pkg/errors"
)

// postgres: undefined_table, undefined_column
var driftCodes = map[pq.ErrorCode]struct{}{
	"42P01": {},
	"42703": {},
}

// IsSchemaDrift reports whether err was caused by a missing table or column.
func IsSchemaDrift(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, customErrors.ErrSchemaDrift) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		_, ok := driftCodes[pqErr.Code]
		return ok
	}

	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) {
		return isMissingObject(liteErr.Error())
	}

	return isMissingObject(err.Error())
}

func isMissingObject(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column")
}
