package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"mlbdash/internal/parser"
)

// workbookSheet 把 excelize 工作表适配为 parser.Sheet；只读取缓存值，不计算公式
type workbookSheet struct {
	file *excelize.File
	name string
}

func newWorkbookSheet(file *excelize.File, name string) *workbookSheet {
	return &workbookSheet{file: file, name: name}
}

func (s *workbookSheet) Name() string { return s.name }

func (s *workbookSheet) Cell(col string, row int) (parser.Cell, error) {
	axis, err := excelize.JoinCellName(col, row)
	if err != nil {
		return parser.Cell{}, err
	}
	typ, err := s.file.GetCellType(s.name, axis)
	if err != nil {
		return parser.Cell{}, fmt.Errorf("failed to get cell type %s: %w", axis, err)
	}
	raw, err := s.file.GetCellValue(s.name, axis, excelize.Options{RawCellValue: true})
	if err != nil {
		return parser.Cell{}, fmt.Errorf("failed to get cell %s: %w", axis, err)
	}
	return toCell(typ, raw), nil
}

func toCell(typ excelize.CellType, raw string) parser.Cell {
	if raw == "" {
		return parser.BlankCell()
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
		excelize.CellTypeError, excelize.CellTypeFormula:
		return parser.TextCell(raw)
	}
	if c, ok := parser.NumberCell(raw); ok {
		return c
	}
	return parser.TextCell(raw)
}
