package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iurnickita/pixrecon/internal/errs"
)

type postgres struct {
	database *sql.DB
}

func NewPostgres(dsn string) (Backend, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, markPg(err, "open postgres ledger")
	}

	// Таблица строк реестра.
	// Одна запись на строку таблицы реестра, ячейки хранятся JSON-массивом,
	// чтобы схема не зависела от набора колонок.
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS ledger_rows (" +
			" tbl VARCHAR (64) NOT NULL," +
			" idx INTEGER NOT NULL," +
			" cells TEXT NOT NULL," +
			" PRIMARY KEY (tbl, idx)" +
			" );")
	if err != nil {
		db.Close()
		return nil, markPg(err, "create ledger_rows")
	}

	return &postgres{database: db}, nil
}

func (p *postgres) Read(ctx context.Context, key Key) ([]Row, error) {
	last := int64(1<<31 - 1)
	if key.Count > 0 {
		last = int64(key.first() + key.Count - 1)
	}
	rows, err := p.database.QueryContext(ctx,
		"SELECT cells FROM ledger_rows"+
			" WHERE tbl = $1"+
			"   AND idx BETWEEN $2 AND $3"+
			" ORDER BY idx",
		key.Table,
		key.first(),
		last)
	if err != nil {
		return nil, markPg(err, "read "+key.String())
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var cells string
		if err := rows.Scan(&cells); err != nil {
			return nil, markPg(err, "scan "+key.String())
		}
		var row Row
		if err := json.Unmarshal([]byte(cells), &row); err != nil {
			return nil, errs.Wrapf(err, "decode %s", key)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, markPg(err, "read "+key.String())
	}
	return result, nil
}

func (p *postgres) Write(ctx context.Context, key Key, rows []Row) error {
	tx, err := p.database.BeginTx(ctx, nil)
	if err != nil {
		return markPg(err, "write "+key.String())
	}
	defer tx.Rollback()

	for i, row := range rows {
		cells, err := json.Marshal(row)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO ledger_rows (tbl, idx, cells)"+
				" VALUES ($1, $2, $3)"+
				" ON CONFLICT (tbl, idx) DO UPDATE SET cells = EXCLUDED.cells",
			key.Table,
			key.first()+i,
			string(cells))
		if err != nil {
			return markPg(err, "write "+key.String())
		}
	}
	return markPg(tx.Commit(), "commit "+key.String())
}

func (p *postgres) Append(ctx context.Context, key Key, rows []Row) (int, error) {
	tx, err := p.database.BeginTx(ctx, nil)
	if err != nil {
		return 0, markPg(err, "append "+key.Table)
	}
	defer tx.Rollback()

	// Блокировка таблицы реестра на время вычисления следующего номера строки
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key.Table); err != nil {
		return 0, markPg(err, "lock "+key.Table)
	}
	var last int
	row := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(idx), 0) FROM ledger_rows WHERE tbl = $1",
		key.Table)
	if err := row.Scan(&last); err != nil {
		return 0, markPg(err, "append "+key.Table)
	}

	for i, r := range rows {
		cells, err := json.Marshal(r)
		if err != nil {
			return 0, err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO ledger_rows (tbl, idx, cells)"+
				" VALUES ($1, $2, $3)",
			key.Table,
			last+1+i,
			string(cells))
		if err != nil {
			return 0, markPg(err, "append "+key.Table)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, markPg(err, "commit "+key.Table)
	}
	return last + 1, nil
}

func (p *postgres) Close() error {
	return p.database.Close()
}

// markPg classifies driver errors by SQLSTATE: class 53 (insufficient
// resources) is a quota problem, class 28 is an authentication failure,
// class 08 and transport errors mean the server is unreachable.
func markPg(err error, op string) error {
	if err == nil {
		return nil
	}
	wrapped := errs.Wrap(err, op)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code[:2] {
		case "53":
			return errs.Mark(wrapped, ErrQuotaExceeded)
		case "28":
			return errs.Mark(wrapped, ErrUnauthenticated)
		case "08", "57":
			return errs.Mark(wrapped, ErrUnavailable)
		}
		return wrapped
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return errs.Mark(wrapped, ErrUnavailable)
	}
	return wrapped
}
