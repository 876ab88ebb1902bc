// Package export writes stored snowline results to CSV or JSON files.
package export

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chrissnell/snowline/internal/storage"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatJSON:
		return Format(s), nil
	}
	return "", fmt.Errorf("invalid format: %s. Must be csv or json", s)
}

// Source streams stored records, oldest first per AOI. An empty aoi selects
// every AOI.
type Source interface {
	Records(ctx context.Context, aoi string, fn func(storage.Record) error) error
}

// ReaderSource reads through a storage engine's read side.
type ReaderSource struct {
	Reader storage.Reader
}

// Records implements Source.
func (s ReaderSource) Records(ctx context.Context, aoi string, fn func(storage.Record) error) error {
	aois := []string{aoi}
	if aoi == "" {
		var err error
		if aois, err = s.Reader.AOIs(ctx); err != nil {
			return err
		}
	}
	for _, a := range aois {
		records, err := s.Reader.Snowlines(ctx, a, time.Time{}, time.Time{})
		if err != nil {
			return err
		}
		for _, r := range records {
			if err := fn(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// PostgresSource streams the snowlines table of a TimescaleDB database
// without loading it into memory.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource connects to the database at connStr.
func NewPostgresSource(ctx context.Context, connStr string) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresSource{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresSource) Close() {
	s.pool.Close()
}

// Records implements Source.
func (s *PostgresSource) Records(ctx context.Context, aoi string, fn func(storage.Record) error) error {
	q := fmt.Sprintf("SELECT %s FROM snowlines", strings.Join(storage.Columns, ", "))
	var args []any
	if aoi != "" {
		q += " WHERE aoi = $1"
		args = append(args, aoi)
	}
	q += " ORDER BY aoi, time"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r storage.Record
		var runID, errText, decision sql.NullString
		dest := r.Fields()
		dest[3], dest[5], dest[6] = &runID, &errText, &decision
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		r.RunID, r.Error, r.Decision = runID.String, errText.String, decision.String
		if err := fn(r); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}

// Write exports the records of src to w and returns how many were written.
func Write(ctx context.Context, src Source, w io.Writer, format Format, aoi string) (int, error) {
	switch format {
	case FormatCSV:
		return writeCSV(ctx, src, w, aoi)
	case FormatJSON:
		return writeJSON(ctx, src, w, aoi)
	}
	return 0, fmt.Errorf("invalid format: %s", format)
}

func writeCSV(ctx context.Context, src Source, w io.Writer, aoi string) (int, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(storage.Columns); err != nil {
		return 0, fmt.Errorf("failed to write headers: %w", err)
	}

	count := 0
	err := src.Records(ctx, aoi, func(r storage.Record) error {
		fields := r.Fields()
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = csvValue(f)
		}
		count++
		return writer.Write(row)
	})
	if err != nil {
		return count, err
	}
	writer.Flush()
	return count, writer.Error()
}

// csvValue formats one Fields pointer. NULLs become empty cells.
func csvValue(f any) string {
	switch v := f.(type) {
	case *time.Time:
		if v.IsZero() {
			return ""
		}
		return v.UTC().Format(time.RFC3339)
	case *string:
		return *v
	case *int:
		return strconv.Itoa(*v)
	case **float64:
		if *v == nil {
			return ""
		}
		return strconv.FormatFloat(**v, 'f', -1, 64)
	}
	return fmt.Sprint(f)
}

func writeJSON(ctx context.Context, src Source, w io.Writer, aoi string) (int, error) {
	if _, err := io.WriteString(w, "[\n"); err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	count := 0
	err := src.Records(ctx, aoi, func(r storage.Record) error {
		if count > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		count++
		return enc.Encode(r)
	})
	if err != nil {
		return count, err
	}
	_, err = io.WriteString(w, "]\n")
	return count, err
}
