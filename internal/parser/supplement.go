package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"mlbdash/internal/model"
)

// AuxSpec 为已提取的块追加一组固定列（累计 / 차주 数值）
type AuxSpec struct {
	Blocks  []string
	Columns ColumnMap
}

// AttachColumns 按标签（去空白，大小写敏感）把辅助列写入 records。
// 同一标签出现多次时取第一行。
func AttachColumns(sheet Sheet, spec BlockSpec, records []model.Record, aux ColumnMap) {
	rowByLabel := make(map[string]int)
	for row := spec.FirstRow; row <= spec.LastRow; row++ {
		label, err := sheet.Cell(spec.LabelCol, row)
		if err != nil || label.IsEmpty() {
			continue
		}
		key := strings.TrimSpace(label.String())
		if _, ok := rowByLabel[key]; !ok {
			rowByLabel[key] = row
		}
	}

	for _, record := range records {
		label := strings.TrimSpace(labelString(record[spec.LabelKey]))
		row, ok := rowByLabel[label]
		if !ok {
			continue
		}
		for _, f := range aux {
			if res := ReadNumber(sheet, f.Column, row); res.OK() {
				record[f.Field] = res.Value
			}
		}
	}
}

func labelString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// Identifier 把索引 / 名称单元格规范为字符串；空值与 "none" 视为无效
func Identifier(c Cell) (string, bool) {
	var s string
	switch v := c.Value.(type) {
	case string:
		s = strings.TrimSpace(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			s = strconv.FormatInt(int64(v), 10)
		} else {
			s = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	if s == "" || strings.EqualFold(s, "none") {
		return "", false
	}
	return s, true
}

// DetailTableSpec 세부 복종 明细表：以索引列去重，替换同名块的输出
type DetailTableSpec struct {
	Replaces string
	FirstRow int
	LastRow  int
	IndexCol string
	IndexKey string
	LabelCol string
	LabelKey string
	Values   ColumnMap
}

// ExtractDetailTable 读取明细表，重复索引保留第一次出现
func ExtractDetailTable(sheet Sheet, spec DetailTableSpec) ([]model.Record, error) {
	if spec.FirstRow < 1 || spec.LastRow < spec.FirstRow {
		return nil, &BlockError{Block: spec.Replaces, Err: fmt.Errorf("invalid row range %d-%d", spec.FirstRow, spec.LastRow)}
	}

	records := make([]model.Record, 0)
	seen := make(map[string]struct{})
	for row := spec.FirstRow; row <= spec.LastRow; row++ {
		c, err := sheet.Cell(spec.IndexCol, row)
		if err != nil {
			continue
		}
		index, ok := Identifier(c)
		if !ok {
			continue
		}
		if _, dup := seen[index]; dup {
			continue
		}
		seen[index] = struct{}{}

		label := ""
		if lc, err := sheet.Cell(spec.LabelCol, row); err == nil {
			label = strings.TrimSpace(lc.String())
		}
		record := model.Record{
			spec.IndexKey: index,
			spec.LabelKey: label,
		}
		for _, f := range spec.Values {
			if res := ReadNumber(sheet, f.Column, row); res.OK() {
				record[f.Field] = res.Value
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// NameRewrite 针对已知重复实体的单行改名（工作簿特定补丁，不做泛化）
type NameRewrite struct {
	Row      int
	Contains string
	Name     string
}

// SupplierSpec 협력사 表
type SupplierSpec struct {
	FirstRow  int
	LastRow   int
	NameCol   string
	Values    ColumnMap
	ValueFrom string // 复制到 "value" 的字段
	Rewrites  []NameRewrite
}

// ExtractSuppliers 读取协力社表：先应用改名，再按名称去重（保留第一次出现）
func ExtractSuppliers(sheet Sheet, spec SupplierSpec) ([]model.Record, error) {
	if spec.FirstRow < 1 || spec.LastRow < spec.FirstRow {
		return nil, &BlockError{Block: model.KeySuppliers, Err: fmt.Errorf("invalid row range %d-%d", spec.FirstRow, spec.LastRow)}
	}

	records := make([]model.Record, 0)
	seen := make(map[string]struct{})
	for row := spec.FirstRow; row <= spec.LastRow; row++ {
		c, err := sheet.Cell(spec.NameCol, row)
		if err != nil {
			continue
		}
		name, ok := Identifier(c)
		if !ok {
			continue
		}
		name = applyRewrites(spec.Rewrites, row, name)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		record := model.Record{"name": name, "index": name}
		for _, f := range spec.Values {
			if res := ReadNumber(sheet, f.Column, row); res.OK() {
				record[f.Field] = res.Value
			}
		}
		if spec.ValueFrom != "" {
			if v, ok := record[spec.ValueFrom]; ok {
				record["value"] = v
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func applyRewrites(rewrites []NameRewrite, row int, name string) string {
	for _, rw := range rewrites {
		if rw.Row == row && strings.Contains(name, rw.Contains) {
			return rw.Name
		}
	}
	return name
}

// ExtractCells 读取若干固定单元格（如 D18），无法解析的单元格省略
func ExtractCells(sheet Sheet, axes []string) map[string]any {
	out := make(map[string]any, len(axes))
	for _, axis := range axes {
		col, row, err := excelize.SplitCellName(axis)
		if err != nil {
			continue
		}
		if res := ReadNumber(sheet, col, row); res.OK() {
			out[axis] = res.Value
		}
	}
	return out
}
