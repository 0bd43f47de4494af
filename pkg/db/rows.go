package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/miyf-books/pkg/db/models"
	dbtypes "github.com/angelmondragon/miyf-books/pkg/db/types"
	"github.com/angelmondragon/miyf-books/pkg/rowstore"
	"gorm.io/gorm"
)

// RowBackend stores sheets in the sheet_rows table with the same row
// semantics as the spreadsheet: 1-based positions, header at position 1 and
// structural deletes that shift later rows up.
type RowBackend struct {
	client *Client
}

var _ rowstore.Backend = (*RowBackend)(nil)

func NewRowBackend(client *Client) (*RowBackend, error) {
	if client == nil || client.conn == nil {
		return nil, errors.New("db client required for row backend")
	}
	return &RowBackend{client: client}, nil
}

func (b *RowBackend) ReadAll(ctx context.Context, sheet string, width int) ([][]string, error) {
	var rows []models.SheetRow
	err := b.client.conn.WithContext(ctx).
		Where("sheet = ?", sheet).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", rowstore.ErrSheetNotFound, sheet)
	}
	grid := make([][]string, rows[len(rows)-1].Position)
	for _, r := range rows {
		if r.Position < 1 {
			continue
		}
		grid[r.Position-1] = trimCells(r.Cells, width)
	}
	return grid, nil
}

func (b *RowBackend) ReadRow(ctx context.Context, sheet string, row, width int) ([]string, error) {
	if err := b.requireSheet(ctx, b.client.conn, sheet); err != nil {
		return nil, err
	}
	var record models.SheetRow
	err := b.client.conn.WithContext(ctx).
		Where("sheet = ? AND position = ?", sheet, row).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read row %s!%d: %w", sheet, row, err)
	}
	return trimCells(record.Cells, width), nil
}

func (b *RowBackend) AppendRow(ctx context.Context, sheet string, cells []string) (int, error) {
	var position int
	err := b.client.WithTx(ctx, func(tx *gorm.DB) error {
		last, err := lastPosition(tx, sheet)
		if err != nil {
			return err
		}
		if last == 0 {
			return fmt.Errorf("%w: %s", rowstore.ErrSheetNotFound, sheet)
		}
		position = last + 1
		return tx.Create(&models.SheetRow{Sheet: sheet, Position: position, Cells: dbtypes.Cells(cells)}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("append %s: %w", sheet, err)
	}
	return position, nil
}

func (b *RowBackend) WriteRow(ctx context.Context, sheet string, row int, cells []string) error {
	if row < 1 {
		return fmt.Errorf("invalid row %d", row)
	}
	return b.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := b.requireSheet(ctx, tx, sheet); err != nil {
			return err
		}
		return upsertRow(tx, sheet, row, cells)
	})
}

func (b *RowBackend) WriteCells(ctx context.Context, sheet string, updates []rowstore.CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return b.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := b.requireSheet(ctx, tx, sheet); err != nil {
			return err
		}
		byRow := map[int][]rowstore.CellUpdate{}
		order := []int{}
		for _, u := range updates {
			if u.Row < 1 || u.Column < 0 {
				return fmt.Errorf("invalid cell %d:%d", u.Row, u.Column)
			}
			if _, seen := byRow[u.Row]; !seen {
				order = append(order, u.Row)
			}
			byRow[u.Row] = append(byRow[u.Row], u)
		}
		for _, row := range order {
			var record models.SheetRow
			err := tx.Where("sheet = ? AND position = ?", sheet, row).Take(&record).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			cells := []string(record.Cells)
			for _, u := range byRow[row] {
				if len(cells) <= u.Column {
					grown := make([]string, u.Column+1)
					copy(grown, cells)
					cells = grown
				}
				cells[u.Column] = u.Value
			}
			if err := upsertRow(tx, sheet, row, cells); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *RowBackend) DeleteRow(ctx context.Context, sheet string, row int) error {
	if row < 2 {
		return fmt.Errorf("row %d out of range", row)
	}
	return b.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := b.requireSheet(ctx, tx, sheet); err != nil {
			return err
		}
		res := tx.Where("sheet = ? AND position = ?", sheet, row).Delete(&models.SheetRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("row %d out of range", row)
		}
		return tx.Model(&models.SheetRow{}).
			Where("sheet = ? AND position > ?", sheet, row).
			Update("position", gorm.Expr("position - 1")).Error
	})
}

func (b *RowBackend) EnsureSheet(ctx context.Context, sheet string, header []string) error {
	return b.client.WithTx(ctx, func(tx *gorm.DB) error {
		var existing models.SheetRow
		err := tx.Where("sheet = ? AND position = 1", sheet).Take(&existing).Error
		if err == nil && !isBlank(existing.Cells) {
			return nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return upsertRow(tx, sheet, 1, header)
	})
}

func (b *RowBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx)
}

func (b *RowBackend) requireSheet(ctx context.Context, conn *gorm.DB, sheet string) error {
	var count int64
	if err := conn.WithContext(ctx).Model(&models.SheetRow{}).Where("sheet = ?", sheet).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", rowstore.ErrSheetNotFound, sheet)
	}
	return nil
}

func lastPosition(tx *gorm.DB, sheet string) (int, error) {
	var last int
	err := tx.Model(&models.SheetRow{}).
		Where("sheet = ?", sheet).
		Select("COALESCE(MAX(position), 0)").
		Scan(&last).Error
	if err != nil {
		return 0, err
	}
	return last, nil
}

func upsertRow(tx *gorm.DB, sheet string, row int, cells []string) error {
	res := tx.Model(&models.SheetRow{}).
		Where("sheet = ? AND position = ?", sheet, row).
		Update("cells", dbtypes.Cells(cells))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return tx.Create(&models.SheetRow{Sheet: sheet, Position: row, Cells: dbtypes.Cells(cells)}).Error
}

func trimCells(cells dbtypes.Cells, width int) []string {
	n := len(cells)
	if width > 0 && n > width {
		n = width
	}
	for n > 0 && cells[n-1] == "" {
		n--
	}
	return append([]string(nil), cells[:n]...)
}

func isBlank(cells dbtypes.Cells) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
