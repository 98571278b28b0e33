package store

import (
	"database/sql"
	"fmt"

	"github.com/kvconsole/kvconsole/internal/profile"
)

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// storedConnection is a connections row with the password still encrypted.
type storedConnection struct {
	profile  profile.Profile
	password string
}

func scanConnection(scanner rowScanner) (storedConnection, error) {
	var (
		c   storedConnection
		tls int
	)
	err := scanner.Scan(
		&c.profile.ID,
		&c.profile.Name,
		&c.profile.Host,
		&c.profile.Port,
		&c.password,
		&tls,
		&c.profile.Database,
		&c.profile.TimeoutMS,
	)
	c.profile.TLS = tls != 0
	return c, err
}

func scanString(scanner rowScanner) (string, error) {
	var value string
	err := scanner.Scan(&value)
	return value, err
}

func scanStringPair(scanner rowScanner) ([2]string, error) {
	var pair [2]string
	err := scanner.Scan(&pair[0], &pair[1])
	return pair, err
}

// scanList scans all rows with scanFn, wraps scan/iteration errors with
// provided operation names and always closes rows before returning.
func scanList[T any](
	rows *sql.Rows,
	scanFn func(rowScanner) (T, error),
	scanOp string,
	iterOp string,
) ([]T, error) {
	defer rows.Close()

	var result []T
	for rows.Next() {
		item, err := scanFn(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", scanOp, err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", iterOp, err)
	}
	return result, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
