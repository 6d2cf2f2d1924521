package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Tables exported by the monthly audit report.
var auditTables = []string{"reservations", "users", "notices", "blocked_units"}

// GetTableNames returns the tables included in audit exports.
func (db *DB) GetTableNames(ctx context.Context) ([]string, error) {
	return auditTables, nil
}

// GetTableData returns all rows of a table as maps plus the column order.
func (db *DB) GetTableData(ctx context.Context, tableName string) ([]map[string]interface{}, []string, error) {
	allowed := false
	for _, t := range auditTables {
		if t == tableName {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, nil, fmt.Errorf("table %q is not exported", tableName)
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+tableName)
	if err != nil {
		return nil, nil, fmt.Errorf("query table %s: %w", tableName, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var data []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		data = append(data, row)
	}
	return data, columns, rows.Err()
}

// GetDB exposes the raw connection for custom audit queries.
func (db *DB) GetDB() *sql.DB {
	return db.DB
}
