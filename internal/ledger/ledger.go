// Package ledger maintains the human-readable xlsx export of committed orders.
package ledger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/elektromontazh/orderbot/internal/domain"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

var headerRow = []interface{}{
	"Date", "Username", "Wall type", "Channeling", "Area",
	"Full name", "Phone", "Address", "Total",
}

// Ledger appends one row per committed order to a single xlsx workbook.
// Each append reads the whole file, adds a row and writes the whole file
// back, so all appends are serialized through one mutex to prevent lost
// updates between concurrent commits.
type Ledger struct {
	mu   sync.Mutex
	path string
}

// New creates a ledger writer for the given workbook path.
func New(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	return &Ledger{path: path}, nil
}

// Append adds one order row, creating the workbook with its header row on
// first use.
func (l *Ledger) Append(order *domain.Order) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, fresh, err := l.open()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("Failed to close ledger workbook", "error", closeErr)
		}
	}()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return fmt.Errorf("read ledger rows: %w", err)
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return fmt.Errorf("ledger row cell: %w", err)
	}

	channeling := "no"
	if order.Channeling {
		channeling = "yes"
	}
	row := []interface{}{
		order.CreatedAt.Format("2006-01-02 15:04"), order.DisplayName,
		order.WallType.Label(), channeling, order.AreaSqm,
		order.FullName, order.Phone, order.Address, order.Total,
	}
	if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
		return fmt.Errorf("append ledger row: %w", err)
	}

	if fresh {
		if err := f.SaveAs(l.path); err != nil {
			return fmt.Errorf("save new ledger: %w", err)
		}
		return nil
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// open loads the existing workbook, or creates a fresh one with the header
// row when the file does not exist yet.
func (l *Ledger) open() (f *excelize.File, fresh bool, err error) {
	if _, statErr := os.Stat(l.path); os.IsNotExist(statErr) {
		f = excelize.NewFile()
		if err := f.SetSheetRow(sheetName, "A1", &headerRow); err != nil {
			_ = f.Close()
			return nil, false, fmt.Errorf("write ledger header: %w", err)
		}
		return f, true, nil
	}

	f, err = excelize.OpenFile(l.path)
	if err != nil {
		return nil, false, fmt.Errorf("open ledger: %w", err)
	}
	return f, false, nil
}
