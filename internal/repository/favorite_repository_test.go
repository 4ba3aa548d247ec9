package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"stellariq/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

func TestFavoriteAddUppercasesSymbol(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	pool := &favStubPool{queryRowData: []any{int64(11), now}}
	repo := NewFavoriteRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	fav, err := repo.Add(context.Background(), domain.Favorite{
		UserID:    7,
		Symbol:    "aapl",
		AssetType: domain.AssetStock,
		Name:      "Apple Inc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fav.ID != 11 {
		t.Fatalf("expected ID 11, got %d", fav.ID)
	}
	if fav.Symbol != "AAPL" {
		t.Fatalf("symbol not normalized: %q", fav.Symbol)
	}
	if !fav.CreatedAt.Equal(now) {
		t.Fatalf("unexpected created_at %v", fav.CreatedAt)
	}
}

func TestFavoriteRemoveMissingRowIsNotFound(t *testing.T) {
	pool := &favStubPool{execTag: pgconn.NewCommandTag("DELETE 0")}
	repo := NewFavoriteRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	err := repo.Remove(context.Background(), 7, "AAPL", domain.AssetStock)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFavoriteRemoveDeletesRow(t *testing.T) {
	pool := &favStubPool{execTag: pgconn.NewCommandTag("DELETE 1")}
	repo := NewFavoriteRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	if err := repo.Remove(context.Background(), 7, "AAPL", domain.AssetStock); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.execCount != 1 {
		t.Fatalf("expected 1 exec, got %d", pool.execCount)
	}
}

func TestFavoriteListByUserScansRows(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	alertAt := now.Add(-2 * time.Hour)
	pool := &favStubPool{
		rowsData: [][]any{
			{int64(1), int64(7), "AAPL", "stock", "Apple Inc", true, "oversold", alertAt, now},
			{int64(2), int64(7), "BTC", "crypto", "", false, "", (*time.Time)(nil), now},
		},
	}
	repo := NewFavoriteRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	favorites, err := repo.ListByUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(favorites) != 2 {
		t.Fatalf("expected 2 favorites, got %d", len(favorites))
	}
	if favorites[0].AssetType != domain.AssetStock || !favorites[0].AlertEnabled {
		t.Fatalf("unexpected first favorite: %+v", favorites[0])
	}
	if favorites[0].LastAlertAt == nil || !favorites[0].LastAlertAt.Equal(alertAt) {
		t.Fatalf("unexpected last alert time: %v", favorites[0].LastAlertAt)
	}
	if favorites[1].AssetType != domain.AssetCrypto || favorites[1].LastAlertAt != nil {
		t.Fatalf("unexpected second favorite: %+v", favorites[1])
	}
}

func TestFavoriteGetMissingRowIsNotFound(t *testing.T) {
	pool := &favStubPool{queryRowErr: pgx.ErrNoRows}
	repo := NewFavoriteRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	_, err := repo.Get(context.Background(), 7, "NOPE", domain.AssetStock)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- stubs ---

type favStubPool struct {
	execCount    int
	execTag      pgconn.CommandTag
	queryRowData []any
	queryRowErr  error
	rowsData     [][]any
}

func (s *favStubPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execCount++
	return s.execTag, nil
}

func (s *favStubPool) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return &favStubBatchResults{}
}

func (s *favStubPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	dataCopy := make([][]any, len(s.rowsData))
	for i := range s.rowsData {
		row := make([]any, len(s.rowsData[i]))
		copy(row, s.rowsData[i])
		dataCopy[i] = row
	}
	return &favStubRows{data: dataCopy}, nil
}

func (s *favStubPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return &favStubRow{data: s.queryRowData, err: s.queryRowErr}
}

type favStubBatchResults struct{}

func (favStubBatchResults) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, nil }
func (favStubBatchResults) Query() (pgx.Rows, error)         { return &favStubRows{}, nil }
func (favStubBatchResults) QueryRow() pgx.Row                { return &favStubRow{} }
func (favStubBatchResults) Close() error                     { return nil }

type favStubRows struct {
	data [][]any
	idx  int
}

func (r *favStubRows) Close()                                       {}
func (r *favStubRows) Err() error                                   { return nil }
func (r *favStubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *favStubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *favStubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *favStubRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.data) {
		return fmt.Errorf("invalid scan index")
	}
	return scanStubRow(r.data[r.idx-1], dest)
}

func (r *favStubRows) Values() ([]any, error) { return nil, nil }
func (r *favStubRows) RawValues() [][]byte    { return nil }
func (r *favStubRows) Conn() *pgx.Conn        { return nil }

type favStubRow struct {
	data []any
	err  error
}

func (r *favStubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.data == nil {
		return pgx.ErrNoRows
	}
	return scanStubRow(r.data, dest)
}

func scanStubRow(row []any, dest []any) error {
	for i, d := range dest {
		switch ptr := d.(type) {
		case *int64:
			*ptr = row[i].(int64)
		case *string:
			*ptr = row[i].(string)
		case *bool:
			*ptr = row[i].(bool)
		case **time.Time:
			if row[i] == nil || row[i] == (*time.Time)(nil) {
				*ptr = nil
			} else {
				v := row[i].(time.Time)
				*ptr = &v
			}
		case *time.Time:
			*ptr = row[i].(time.Time)
		default:
			return fmt.Errorf("unsupported dest type %T", d)
		}
	}
	return nil
}
