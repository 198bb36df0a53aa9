package store

import (
	"context"
	"fmt"

	"github.com/iurnickita/pixrecon/internal/errs"
	"github.com/iurnickita/pixrecon/internal/store/config"
)

// Row is one flat ledger row, cells in column order.
type Row []string

// Key addresses a table and a row range in it. Rows are numbered from 1.
// Count 0 means "up to the last row".
type Key struct {
	Table string
	From  int
	Count int
}

func TableKey(table string) Key {
	return Key{Table: table, From: 1}
}

func RowKey(table string, row int) Key {
	return Key{Table: table, From: row, Count: 1}
}

func (k Key) String() string {
	from := k.first()
	if k.Count == 0 {
		return fmt.Sprintf("%s!%d:", k.Table, from)
	}
	return fmt.Sprintf("%s!%d:%d", k.Table, from, from+k.Count-1)
}

func (k Key) first() int {
	if k.From < 1 {
		return 1
	}
	return k.From
}

// contains reports whether the 1-based row number falls inside the range.
func (k Key) contains(row int) bool {
	if row < k.first() {
		return false
	}
	return k.Count == 0 || row < k.first()+k.Count
}

// Backend is the external system of record. Implementations mark their
// failures with ErrQuotaExceeded, ErrUnauthenticated or ErrUnavailable.
type Backend interface {
	// Read returns the rows of the range; an empty or missing table yields
	// no rows and no error.
	Read(ctx context.Context, key Key) ([]Row, error)
	// Write overwrites rows starting at key.From.
	Write(ctx context.Context, key Key, rows []Row) error
	// Append adds rows after the last row of key.Table and returns the
	// number of the first appended row.
	Append(ctx context.Context, key Key, rows []Row) (int, error)
	Close() error
}

var (
	ErrQuotaExceeded   = errs.New("backend quota exceeded")
	ErrUnauthenticated = errs.New("backend authentication failed")
	ErrUnavailable     = errs.New("backend unavailable")
	ErrUnknownBackend  = errs.New("unknown ledger backend")
)

const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendXLSX     = "xlsx"
	BackendPostgres = "postgres"
)

// NewBackend opens the backend selected by the configuration.
func NewBackend(cfg config.Config) (Backend, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendBolt:
		return NewBolt(cfg.Path)
	case BackendXLSX:
		return NewWorkbook(cfg.Path)
	case BackendPostgres:
		return NewPostgres(cfg.DBDsn)
	default:
		return nil, errs.Wrapf(ErrUnknownBackend, "backend %q", cfg.Backend)
	}
}

func copyRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, row := range rows {
		out[i] = append(Row(nil), row...)
	}
	return out
}
