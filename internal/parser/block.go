package parser

import (
	"fmt"

	"mlbdash/internal/model"
)

// BlockSpec 一个行块的固定配置
type BlockSpec struct {
	Name           string
	FirstRow       int // 含
	LastRow        int // 含
	LabelCol       string
	LabelKey       string
	StopOnBlank    bool
	BlankTolerance int
	UseDetail      bool      // 使用 detail 列映射（P/Q 起始）
	Columns        ColumnMap // 固定列映射，优先于 UseDetail
}

// ColumnsFor 选择本块使用的列映射
func (s BlockSpec) ColumnsFor(standard, detail ColumnMap) ColumnMap {
	switch {
	case s.Columns != nil:
		return s.Columns
	case s.UseDetail:
		return detail
	}
	return standard
}

// Validate 校验块配置
func (s BlockSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("block: empty name")
	}
	if s.LabelKey == "" {
		return fmt.Errorf("block %s: empty label key", s.Name)
	}
	if s.FirstRow < 1 || s.LastRow < s.FirstRow {
		return fmt.Errorf("block %s: invalid row range %d-%d", s.Name, s.FirstRow, s.LastRow)
	}
	if _, err := LetterToNumber(s.LabelCol); err != nil {
		return fmt.Errorf("block %s: label column: %w", s.Name, err)
	}
	if s.StopOnBlank && s.BlankTolerance < 1 {
		return fmt.Errorf("block %s: blank tolerance must be >= 1", s.Name)
	}
	for _, f := range s.Columns {
		if _, err := LetterToNumber(f.Column); err != nil {
			return fmt.Errorf("block %s: field %s: %w", s.Name, f.Field, err)
		}
	}
	return nil
}

// BlockError 单个块提取失败；加载器据此把该块降级为空列表
type BlockError struct {
	Block string
	Err   error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("extract block %q: %v", e.Block, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

// ExtractBlock 按行读取一个块，每个非空标签行输出一条记录。
// 字段无法读取时直接省略；只有标签没有任何数值字段的行被丢弃。
func ExtractBlock(sheet Sheet, spec BlockSpec, columns ColumnMap) ([]model.Record, error) {
	if err := spec.Validate(); err != nil {
		return nil, &BlockError{Block: spec.Name, Err: err}
	}
	if len(columns) == 0 {
		return nil, &BlockError{Block: spec.Name, Err: fmt.Errorf("no value columns")}
	}

	records := make([]model.Record, 0)
	blankStreak := 0
	for row := spec.FirstRow; row <= spec.LastRow; row++ {
		label, err := sheet.Cell(spec.LabelCol, row)
		if err != nil {
			continue
		}
		if label.IsEmpty() {
			if spec.StopOnBlank {
				blankStreak++
				if blankStreak >= spec.BlankTolerance {
					break
				}
			}
			continue
		}
		blankStreak = 0

		record := model.Record{spec.LabelKey: label.Value}
		for _, f := range columns {
			if res := ReadNumber(sheet, f.Column, row); res.OK() {
				record[f.Field] = res.Value
			}
		}
		if len(record) > 1 {
			records = append(records, record)
		}
	}
	return records, nil
}
