package parser

import (
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"mlbdash/internal/model"
)

// 合理的周次范围
const (
	MinWeek = 1
	MaxWeek = 60
)

var weekPattern = regexp.MustCompile(`(\d+)\s*주차`)

// WeekSource 周次的来源（用于日志）
type WeekSource string

const (
	WeekFromHeader       WeekSource = "header"        // 主表头两格均命中
	WeekFromHeaderSingle WeekSource = "header_single" // 仅금주格命中，차주 = +1
	WeekFromScan         WeekSource = "scan"          // 旧版表头区域扫描
	WeekFromScanSingle   WeekSource = "scan_single"   // 扫描到一个，차주 = +1
	WeekFromDefault      WeekSource = "default"       // 未找到，使用默认值
)

// WeekLocator 周次所在的表头位置
type WeekLocator struct {
	CurrentCell string // 新版布局：금주 表头，例如 D3
	NextCell    string // 新版布局：차주 表头，例如 K3
	ScanFromRow int    // 旧版布局扫描区域
	ScanToRow   int
	ScanFromCol string
	ScanToCol   string
}

// DefaultWeekLocator D3/K3 + 1–4 行 D–L 列
func DefaultWeekLocator() WeekLocator {
	return WeekLocator{
		CurrentCell: "D3",
		NextCell:    "K3",
		ScanFromRow: 1,
		ScanToRow:   4,
		ScanFromCol: "D",
		ScanToCol:   "L",
	}
}

// ExtractWeek 从单元格识别周次："N주차" 文本或 1–60 的纯数字
func ExtractWeek(c Cell) (int, bool) {
	switch v := c.Value.(type) {
	case int64:
		return inWeekRange(int(v))
	case float64:
		return inWeekRange(int(v))
	case string:
		m := weekPattern.FindStringSubmatch(strings.TrimSpace(v))
		if len(m) < 2 {
			return 0, false
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return inWeekRange(n)
	}
	return 0, false
}

func inWeekRange(n int) (int, bool) {
	if n < MinWeek || n > MaxWeek {
		return 0, false
	}
	return n, true
}

// FindWeeks 确定当前周与下周；从不失败，最终回落到 defaults
func FindWeeks(sheet Sheet, loc WeekLocator, defaults model.WeekPair) (model.WeekPair, WeekSource) {
	current, okCurrent := weekAt(sheet, loc.CurrentCell)
	next, okNext := weekAt(sheet, loc.NextCell)
	switch {
	case okCurrent && okNext:
		return model.WeekPair{Current: current, Next: next}, WeekFromHeader
	case okCurrent:
		return model.WeekPair{Current: current, Next: current + 1}, WeekFromHeaderSingle
	}

	found := scanWeeks(sheet, loc)
	switch len(found) {
	case 2:
		return model.WeekPair{Current: found[0], Next: found[1]}, WeekFromScan
	case 1:
		return model.WeekPair{Current: found[0], Next: found[0] + 1}, WeekFromScanSingle
	}
	return defaults, WeekFromDefault
}

func weekAt(sheet Sheet, axis string) (int, bool) {
	if axis == "" {
		return 0, false
	}
	col, row, err := excelize.SplitCellName(axis)
	if err != nil {
		return 0, false
	}
	c, err := sheet.Cell(col, row)
	if err != nil {
		return 0, false
	}
	return ExtractWeek(c)
}

// scanWeeks 按行优先扫描，收集最多两个不同周次并升序返回
func scanWeeks(sheet Sheet, loc WeekLocator) []int {
	from, err := LetterToNumber(loc.ScanFromCol)
	if err != nil {
		return nil
	}
	to, err := LetterToNumber(loc.ScanToCol)
	if err != nil {
		return nil
	}

	var found []int
	for row := loc.ScanFromRow; row <= loc.ScanToRow && len(found) < 2; row++ {
		for col := from; col <= to && len(found) < 2; col++ {
			c, err := sheet.Cell(NumberToLetter(col), row)
			if err != nil {
				continue
			}
			week, ok := ExtractWeek(c)
			if !ok || slices.Contains(found, week) {
				continue
			}
			found = append(found, week)
		}
	}
	sort.Ints(found)
	return found
}
