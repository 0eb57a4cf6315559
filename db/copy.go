// ABOUTME: Table-by-table copy between two stores
// ABOUTME: Moves a local SQLite database into hosted Postgres without duplicating rows
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// CopyTables lists every table in foreign key order.
var CopyTables = []string{
	"contacts",
	"tasks",
	"daily_plans",
	"external_events",
	"action_items",
	"sync_runs",
	"sync_state",
}

// CopyResult counts rows per table: read from the source and newly
// written to the destination.
type CopyResult struct {
	Table    string
	Read     int
	Inserted int
}

// CountRows reports the row count of every copied table.
func (s *Store) CountRows(ctx context.Context) ([]CopyResult, error) {
	results := make([]CopyResult, 0, len(CopyTables))
	for _, table := range CopyTables {
		var n int
		if err := s.queryRow(ctx, s.db, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, classify(err))
		}
		results = append(results, CopyResult{Table: table, Read: n})
	}
	return results, nil
}

// CopyTo inserts every row of s into dst inside one destination
// transaction. Rows that collide on any unique key are skipped, so running
// it again is a no-op.
func (s *Store) CopyTo(ctx context.Context, dst *Store) ([]CopyResult, error) {
	results := make([]CopyResult, 0, len(CopyTables))
	err := dst.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range CopyTables {
			res, err := s.copyTable(ctx, dst, tx, table)
			if err != nil {
				return err
			}
			results = append(results, res)
			dst.logger.Info("table copied",
				zap.String("table", table),
				zap.Int("read", res.Read),
				zap.Int("inserted", res.Inserted),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) copyTable(ctx context.Context, dst *Store, tx *sql.Tx, table string) (CopyResult, error) {
	res := CopyResult{Table: table}

	rows, err := s.query(ctx, s.db, "SELECT * FROM "+table)
	if err != nil {
		return res, fmt.Errorf("failed to read %s: %w", table, classify(err))
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return res, err
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		table, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return res, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		for i, v := range values {
			// Some drivers hand back TEXT as []byte.
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		r, err := dst.exec(ctx, tx, insert, values...)
		if err != nil {
			return res, fmt.Errorf("failed to insert into %s: %w", table, classify(err))
		}
		res.Read++
		if n, _ := r.RowsAffected(); n > 0 {
			res.Inserted += int(n)
		}
	}
	return res, rows.Err()
}
