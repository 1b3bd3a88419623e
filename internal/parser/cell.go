package parser

import (
	"strconv"
	"strings"
)

// CellKind 单元格值类别
type CellKind int

const (
	CellBlank  CellKind = iota // 空
	CellNumber                 // 数值（int64 或 float64）
	CellText                   // 文本
)

// Cell 工作表中读出的字面值（从不包含公式）
type Cell struct {
	Kind  CellKind
	Value any
}

// BlankCell 空单元格
func BlankCell() Cell { return Cell{Kind: CellBlank} }

// TextCell 文本单元格
func TextCell(s string) Cell { return Cell{Kind: CellText, Value: s} }

// IntCell 整数单元格
func IntCell(n int64) Cell { return Cell{Kind: CellNumber, Value: n} }

// FloatCell 浮点单元格
func FloatCell(f float64) Cell { return Cell{Kind: CellNumber, Value: f} }

// NumberCell 由原始数值字符串构造：先按整数解析，再按浮点解析
func NumberCell(raw string) (Cell, bool) {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return IntCell(i), true
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return FloatCell(f), true
	}
	return Cell{}, false
}

// IsEmpty 空单元格或空字符串
func (c Cell) IsEmpty() bool {
	switch c.Kind {
	case CellBlank:
		return true
	case CellText:
		s, _ := c.Value.(string)
		return s == ""
	}
	return false
}

// Text 文本值
func (c Cell) Text() string {
	s, _ := c.Value.(string)
	return s
}

// String 标签比较与索引使用的字符串形式
func (c Cell) String() string {
	switch v := c.Value.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// SkipReason 字段被省略的原因
type SkipReason int

const (
	SkipNone        SkipReason = iota
	SkipBlank                  // 空白
	SkipErrorMarker            // #REF! / #VALUE! / #N/A ...
	SkipUnparsable             // 文本无法转换为数值
	SkipReadFailure            // 读取单元格失败
)

func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "none"
	case SkipBlank:
		return "blank"
	case SkipErrorMarker:
		return "error_marker"
	case SkipUnparsable:
		return "unparsable"
	case SkipReadFailure:
		return "read_failure"
	}
	return "unknown"
}

// CellResult 单元格归类结果：Value 仅在 Skip == SkipNone 时有效
type CellResult struct {
	Value any
	Skip  SkipReason
}

// OK 是否得到可用数值
func (r CellResult) OK() bool { return r.Skip == SkipNone }

func skip(reason SkipReason) CellResult { return CellResult{Skip: reason} }

// Classify 把单元格归类为数值或省略原因
func Classify(c Cell) CellResult {
	switch c.Kind {
	case CellBlank:
		return skip(SkipBlank)
	case CellNumber:
		return CellResult{Value: c.Value}
	}

	text := c.Text()
	if strings.HasPrefix(text, "#") {
		return skip(SkipErrorMarker)
	}
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return skip(SkipBlank)
	}
	if strings.HasPrefix(cleaned, "#") {
		return skip(SkipErrorMarker)
	}
	if strings.Contains(cleaned, ".") {
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return skip(SkipUnparsable)
		}
		return CellResult{Value: f}
	}
	i, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return skip(SkipUnparsable)
	}
	return CellResult{Value: i}
}

// ReadNumber 读取并归类一个单元格；读取失败归为 SkipReadFailure
func ReadNumber(sheet Sheet, col string, row int) CellResult {
	c, err := sheet.Cell(col, row)
	if err != nil {
		return skip(SkipReadFailure)
	}
	return Classify(c)
}
