package models

import (
	"time"

	dbtypes "github.com/angelmondragon/miyf-books/pkg/db/types"
)

// SheetRow stores one spreadsheet row. Position is the 1-based row number and
// position 1 holds the header.
type SheetRow struct {
	ID        uint64        `gorm:"primaryKey;autoIncrement"`
	Sheet     string        `gorm:"column:sheet;type:text;not null;index:idx_sheet_rows_sheet_position,priority:1"`
	Position  int           `gorm:"column:position;not null;index:idx_sheet_rows_sheet_position,priority:2"`
	Cells     dbtypes.Cells `gorm:"column:cells;type:text;not null"`
	UpdatedAt time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

func (SheetRow) TableName() string {
	return "sheet_rows"
}
