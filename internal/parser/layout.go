package parser

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"mlbdash/internal/model"
)

// 布局名称
const (
	LayoutNameV1 = "v1"
	LayoutNameV2 = "v2"
)

// 块名称
const (
	BlockNations       = "nations"
	BlockItems         = "items"
	BlockCategories    = "categories"
	BlockSubCategories = "sub_categories"
)

// RequiredBlocks 一份有效文档必须包含的块
var RequiredBlocks = []string{BlockNations, BlockItems, BlockCategories}

// ColumnBases 两套数值列映射的起始列
type ColumnBases struct {
	TotalQty       string
	Base           string
	DetailTotalQty string
	DetailBase     string
}

// Layout 工作簿的固定版式
type Layout struct {
	Name         string
	Weeks        WeekLocator
	Columns      ColumnBases
	Blocks       []BlockSpec
	Cumulative   *AuxSpec
	Detail       *DetailTableSpec
	Suppliers    *SupplierSpec
	SummaryCells []string
}

// ColumnMaps 按周次生成标准 / detail 映射
func (l Layout) ColumnMaps(weeks model.WeekPair) (standard, detail ColumnMap, err error) {
	standard, err = BuildColumnMap(weeks.Current, weeks.Next, l.Columns.TotalQty, l.Columns.Base)
	if err != nil {
		return nil, nil, fmt.Errorf("standard columns: %w", err)
	}
	detail, err = BuildColumnMap(weeks.Current, weeks.Next, l.Columns.DetailTotalQty, l.Columns.DetailBase)
	if err != nil {
		return nil, nil, fmt.Errorf("detail columns: %w", err)
	}
	return standard, detail, nil
}

// BlockSpec 按名称查找块配置
func (l Layout) BlockSpec(name string) (BlockSpec, bool) {
	for _, b := range l.Blocks {
		if b.Name == name {
			return b, true
		}
	}
	return BlockSpec{}, false
}

// Validate 启动时校验版式
func (l Layout) Validate() error {
	var errs []error
	if len(l.Blocks) == 0 {
		errs = append(errs, errors.New("no blocks"))
	}
	names := make(map[string]struct{}, len(l.Blocks))
	for _, b := range l.Blocks {
		if err := b.Validate(); err != nil {
			errs = append(errs, err)
		}
		if _, dup := names[b.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate block %q", b.Name))
		}
		names[b.Name] = struct{}{}
	}
	for _, col := range []string{l.Columns.TotalQty, l.Columns.Base, l.Columns.DetailTotalQty, l.Columns.DetailBase} {
		if _, err := LetterToNumber(col); err != nil {
			errs = append(errs, fmt.Errorf("column bases: %w", err))
		}
	}
	for _, axis := range []string{l.Weeks.CurrentCell, l.Weeks.NextCell} {
		if _, _, err := excelize.SplitCellName(axis); err != nil {
			errs = append(errs, fmt.Errorf("week header %q: %w", axis, err))
		}
	}
	if l.Cumulative != nil {
		for _, name := range l.Cumulative.Blocks {
			if _, ok := names[name]; !ok {
				errs = append(errs, fmt.Errorf("cumulative columns reference unknown block %q", name))
			}
		}
		errs = append(errs, validateColumns("cumulative", l.Cumulative.Columns)...)
	}
	if l.Detail != nil {
		if l.Detail.FirstRow < 1 || l.Detail.LastRow < l.Detail.FirstRow {
			errs = append(errs, fmt.Errorf("detail table: invalid row range %d-%d", l.Detail.FirstRow, l.Detail.LastRow))
		}
		errs = append(errs, validateColumns("detail table", append(ColumnMap{
			{Field: l.Detail.IndexKey, Column: l.Detail.IndexCol},
			{Field: l.Detail.LabelKey, Column: l.Detail.LabelCol},
		}, l.Detail.Values...))...)
	}
	if l.Suppliers != nil {
		if l.Suppliers.FirstRow < 1 || l.Suppliers.LastRow < l.Suppliers.FirstRow {
			errs = append(errs, fmt.Errorf("suppliers: invalid row range %d-%d", l.Suppliers.FirstRow, l.Suppliers.LastRow))
		}
		errs = append(errs, validateColumns("suppliers", append(ColumnMap{
			{Field: "name", Column: l.Suppliers.NameCol},
		}, l.Suppliers.Values...))...)
	}
	for _, axis := range l.SummaryCells {
		if _, _, err := excelize.SplitCellName(axis); err != nil {
			errs = append(errs, fmt.Errorf("summary cell %q: %w", axis, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("layout %s: %w", l.Name, err)
	}
	return nil
}

func validateColumns(scope string, m ColumnMap) []error {
	var errs []error
	for _, f := range m {
		if _, err := LetterToNumber(f.Column); err != nil {
			errs = append(errs, fmt.Errorf("%s: field %s: %w", scope, f.Field, err))
		}
	}
	return errs
}

// LayoutByName 取得内置版式
func LayoutByName(name string) (Layout, error) {
	switch name {
	case LayoutNameV1:
		return LayoutV1(), nil
	case LayoutNameV2, "":
		return LayoutV2(), nil
	}
	return Layout{}, fmt.Errorf("unknown layout %q", name)
}

// LayoutV1 早期工作簿：只有四个数值块
func LayoutV1() Layout {
	return Layout{
		Name:  LayoutNameV1,
		Weeks: DefaultWeekLocator(),
		Columns: ColumnBases{
			TotalQty:       "C",
			Base:           "D",
			DetailTotalQty: "P",
			DetailBase:     "Q",
		},
		Blocks: []BlockSpec{
			{Name: BlockNations, FirstRow: 5, LastRow: 9, LabelCol: "B", LabelKey: "code"},
			{Name: BlockItems, FirstRow: 15, LastRow: 18, LabelCol: "B", LabelKey: "item"},
			{Name: BlockCategories, FirstRow: 24, LastRow: 79, LabelCol: "B", LabelKey: "category", StopOnBlank: true, BlankTolerance: 2},
			{Name: BlockSubCategories, FirstRow: 5, LastRow: 59, LabelCol: "O", LabelKey: "subcategory", UseDetail: true, StopOnBlank: true, BlankTolerance: 3},
		},
	}
}

// LayoutV2 DASHBOARD_V2 工作簿：累计列、明细表、协力社表、汇总单元格
func LayoutV2() Layout {
	l := LayoutV1()
	l.Name = LayoutNameV2
	l.Blocks[3].LastRow = 99
	l.Blocks[3].BlankTolerance = 10

	l.Cumulative = &AuxSpec{
		Blocks: []string{BlockNations, BlockItems},
		Columns: ColumnMap{
			{Field: "target_cumulative", Column: "F"},
			{Field: "actual_cumulative", Column: "G"},
			{Field: "target_next", Column: "M"},
			{Field: "actual_next", Column: "N"},
		},
	}
	l.Detail = &DetailTableSpec{
		Replaces: BlockSubCategories,
		FirstRow: 5,
		LastRow:  150,
		IndexCol: "S",
		IndexKey: "index",
		LabelCol: "O",
		LabelKey: "subcategory",
		Values: ColumnMap{
			{Field: "target_cumulative", Column: "W"},
			{Field: "actual_cumulative", Column: "X"},
			{Field: "target_next", Column: "AD"},
			{Field: "actual_next", Column: "AE"},
		},
	}
	l.Suppliers = &SupplierSpec{
		FirstRow: 5,
		LastRow:  50,
		NameCol:  "AK",
		Values: ColumnMap{
			{Field: "target_cumulative", Column: "AO"},
			{Field: "actual_cumulative", Column: "AP"},
			{Field: "target_next", Column: "AV"},
			{Field: "actual_next", Column: "AW"},
		},
		ValueFrom: "actual_cumulative",
		// 14 行的 (주)노브랜드 是 WOVEN 产线，与另一行同名
		Rewrites: []NameRewrite{
			{Row: 14, Contains: "노브랜드", Name: "(주)노브랜드_WOVEN"},
		},
	}
	l.SummaryCells = []string{"D18", "E18", "F18", "G18", "K18", "L18", "M18", "N18", "O18", "P18"}
	return l
}
