package excel

import (
	"errors"
	"fmt"
	"strings"
)

// 加载错误类别；只有这几类会返回给接口调用方
var (
	ErrSourceUnavailable = errors.New("workbook not found")
	ErrPermissionDenied  = errors.New("workbook is locked or not readable")
	ErrSheetNotFound     = errors.New("sheet not found")
	ErrLoadFailure       = errors.New("failed to load workbook")
)

// LoadError 工作簿加载失败
type LoadError struct {
	Path   string
	Sheet  string
	Kind   error    // 上面的哨兵错误之一
	Sheets []string // SheetNotFound 时列出可用工作表
	Err    error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Sheet != "" {
		fmt.Fprintf(&b, " (sheet %q)", e.Sheet)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, ": %s", e.Path)
	}
	if len(e.Sheets) > 0 {
		fmt.Fprintf(&b, "; available sheets: %s", strings.Join(e.Sheets, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap errors.Is 可同时匹配类别与底层错误
func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Hint 面向用户的处理建议
func (e *LoadError) Hint() string {
	switch e.Kind {
	case ErrSourceUnavailable:
		return "check SUMMARY_EXCEL or wait for the next file sync"
	case ErrPermissionDenied:
		return "close the workbook in Excel and retry"
	case ErrSheetNotFound:
		return "set SUMMARY_SHEET to one of the available sheets"
	}
	return ""
}

func newLoadError(kind error, path, sheet string, err error) *LoadError {
	return &LoadError{Path: path, Sheet: sheet, Kind: kind, Err: err}
}
