package store

import (
	"context"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/iurnickita/pixrecon/internal/errs"
)

// Ledger kept as an .xlsx workbook, one sheet per table, the layout the
// office staff already keeps by hand. The file is rewritten on every write.
type workbook struct {
	mu   sync.Mutex
	path string
	file *excelize.File
}

func NewWorkbook(path string) (Backend, error) {
	var f *excelize.File
	if _, err := os.Stat(path); err == nil {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return nil, errs.Mark(errs.Wrapf(err, "open workbook %s", path), ErrUnavailable)
		}
	} else {
		f = excelize.NewFile()
		if err := f.SaveAs(path); err != nil {
			return nil, errs.Mark(errs.Wrapf(err, "create workbook %s", path), ErrUnavailable)
		}
	}
	return &workbook{path: path, file: f}, nil
}

func (w *workbook) hasSheet(name string) bool {
	idx, err := w.file.GetSheetIndex(name)
	return err == nil && idx >= 0
}

func (w *workbook) Read(_ context.Context, key Key) ([]Row, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.hasSheet(key.Table) {
		return nil, nil
	}
	all, err := w.file.GetRows(key.Table)
	if err != nil {
		return nil, errs.Wrapf(err, "read %s", key)
	}
	var rows []Row
	for i, cells := range all {
		if key.contains(i + 1) {
			rows = append(rows, Row(cells))
		}
	}
	return rows, nil
}

func (w *workbook) Write(_ context.Context, key Key, rows []Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensureSheet(key.Table); err != nil {
		return err
	}
	if err := w.setRows(key.Table, key.first(), rows); err != nil {
		return errs.Wrapf(err, "write %s", key)
	}
	return w.save()
}

func (w *workbook) Append(_ context.Context, key Key, rows []Row) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensureSheet(key.Table); err != nil {
		return 0, err
	}
	existing, err := w.file.GetRows(key.Table)
	if err != nil {
		return 0, errs.Wrapf(err, "append %s", key.Table)
	}
	first := len(existing) + 1
	if err := w.setRows(key.Table, first, rows); err != nil {
		return 0, errs.Wrapf(err, "append %s", key.Table)
	}
	return first, w.save()
}

func (w *workbook) Close() error {
	return w.file.Close()
}

func (w *workbook) ensureSheet(name string) error {
	if w.hasSheet(name) {
		return nil
	}
	if _, err := w.file.NewSheet(name); err != nil {
		return errs.Wrapf(err, "create sheet %s", name)
	}
	return nil
}

func (w *workbook) setRows(sheet string, first int, rows []Row) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, first+i)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := w.file.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func (w *workbook) save() error {
	if err := w.file.SaveAs(w.path); err != nil {
		return errs.Mark(errs.Wrapf(err, "save workbook %s", w.path), ErrUnavailable)
	}
	return nil
}
