package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// LetterToNumber 列字母转列号（A=1, Z=26, AA=27），大小写不敏感
func LetterToNumber(col string) (int, error) {
	col = strings.TrimSpace(col)
	if col == "" {
		return 0, fmt.Errorf("invalid column %q", col)
	}
	n := 0
	for _, r := range strings.ToUpper(col) {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid column %q", col)
		}
		n = n*26 + int(r-'A'+1)
	}
	return n, nil
}

// NumberToLetter 列号转列字母，n 必须 >= 1
func NumberToLetter(n int) string {
	if n < 1 {
		return ""
	}
	var b []byte
	for n > 0 {
		n--
		b = append(b, byte('A'+n%26))
		n /= 26
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// OffsetColumn 列字母向右偏移 delta 列
func OffsetColumn(col string, delta int) (string, error) {
	n, err := LetterToNumber(col)
	if err != nil {
		return "", err
	}
	if n+delta < 1 {
		return "", fmt.Errorf("column %s%+d out of range", col, delta)
	}
	return NumberToLetter(n + delta), nil
}

// BuildColumnMap 按周次生成 10 个固定语义字段：
// total_qty 固定在 totalQtyCol，其余 9 个字段依次位于 baseCol+0 .. baseCol+8
func BuildColumnMap(week1, week2 int, totalQtyCol, baseCol string) (ColumnMap, error) {
	if _, err := LetterToNumber(totalQtyCol); err != nil {
		return nil, err
	}
	base, err := LetterToNumber(baseCol)
	if err != nil {
		return nil, err
	}

	w1 := strconv.Itoa(week1)
	w2 := strconv.Itoa(week2)
	fields := []string{
		"target_" + w1,
		"actual_" + w1,
		"diff_" + w1,
		"target_" + w1 + "_pct",
		"actual_" + w1 + "_pct",
		"target_" + w2,
		"actual_" + w2,
		"target_" + w2 + "_pct",
		"actual_" + w2 + "_pct",
	}

	m := make(ColumnMap, 0, len(fields)+1)
	m = append(m, ColumnField{Field: "total_qty", Column: strings.ToUpper(totalQtyCol)})
	for i, f := range fields {
		m = append(m, ColumnField{Field: f, Column: NumberToLetter(base + i)})
	}
	return m, nil
}
