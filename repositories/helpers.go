package repositories

import (
	"database/sql"
	"fmt"
)

func checkRowsAffected(result sql.Result) (int64, error) {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rowsAffected, nil
}
