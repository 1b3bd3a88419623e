package excel

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/xuri/excelize/v2"

	"mlbdash/internal/model"
	"mlbdash/internal/parser"
)

// zip 本地文件头；xlsx 必须以此开头
var zipSignature = []byte("PK")

// Loader 工作簿加载器：每次加载打开一次工作簿，结束即释放
type Loader struct {
	path     string
	layout   parser.Layout
	defaults model.WeekPair
	logger   *slog.Logger
}

// NewLoader 创建加载器；layout 应已通过 Validate
func NewLoader(path string, layout parser.Layout, defaults model.WeekPair, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		path:     path,
		layout:   layout,
		defaults: defaults,
		logger:   logger.With("component", "excel_loader"),
	}
}

// Path 工作簿路径
func (l *Loader) Path() string {
	return l.path
}

// LoadSummary 加载单个工作表
func (l *Loader) LoadSummary(sheetName string) (*model.Document, error) {
	docs, err := l.LoadSheets([]string{sheetName})
	if err != nil {
		return nil, err
	}
	return docs[sheetName], nil
}

// LoadSheets 打开一次工作簿并提取多个工作表；任一工作表缺失即整体失败
func (l *Loader) LoadSheets(sheetNames []string) (map[string]*model.Document, error) {
	wb, err := l.open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := wb.Close(); cerr != nil {
			l.logger.Warn("failed to close workbook", "path", l.path, "error", cerr)
		}
	}()

	available := wb.GetSheetList()
	docs := make(map[string]*model.Document, len(sheetNames))
	for _, name := range sheetNames {
		if !slices.Contains(available, name) {
			return nil, &LoadError{Path: l.path, Sheet: name, Kind: ErrSheetNotFound, Sheets: available}
		}
		doc, err := l.extract(newWorkbookSheet(wb, name))
		if err != nil {
			return nil, newLoadError(ErrLoadFailure, l.path, name, err)
		}
		docs[name] = doc
	}
	return docs, nil
}

// SheetNames 工作簿中的工作表名称
func (l *Loader) SheetNames() ([]string, error) {
	wb, err := l.open()
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	return wb.GetSheetList(), nil
}

func (l *Loader) open() (*excelize.File, error) {
	info, err := os.Stat(l.path)
	if err != nil {
		return nil, l.classifyOpenError(err)
	}
	if info.IsDir() {
		return nil, newLoadError(ErrLoadFailure, l.path, "", errors.New("path is a directory"))
	}

	f, err := os.Open(l.path)
	if err != nil {
		return nil, l.classifyOpenError(err)
	}
	defer f.Close()

	head := make([]byte, len(zipSignature))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, zipSignature) {
		return nil, newLoadError(ErrLoadFailure, l.path, "", errors.New("not an xlsx workbook"))
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, newLoadError(ErrLoadFailure, l.path, "", err)
	}

	wb, err := excelize.OpenReader(f)
	if err != nil {
		return nil, newLoadError(ErrLoadFailure, l.path, "", fmt.Errorf("failed to open excel: %w", err))
	}
	return wb, nil
}

func (l *Loader) classifyOpenError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return newLoadError(ErrSourceUnavailable, l.path, "", err)
	case errors.Is(err, fs.ErrPermission):
		return newLoadError(ErrPermissionDenied, l.path, "", err)
	}
	return newLoadError(ErrLoadFailure, l.path, "", err)
}

func (l *Loader) extract(sheet parser.Sheet) (*model.Document, error) {
	log := l.logger.With("sheet", sheet.Name())

	weeks, source := parser.FindWeeks(sheet, l.layout.Weeks, l.defaults)
	if source == parser.WeekFromDefault {
		log.Warn("week headers not found, using defaults", "week_current", weeks.Current, "week_next", weeks.Next)
	} else {
		log.Debug("weeks resolved", "week_current", weeks.Current, "week_next", weeks.Next, "source", string(source))
	}

	standard, detail, err := l.layout.ColumnMaps(weeks)
	if err != nil {
		return nil, err
	}

	doc := model.NewDocument(sheet.Name(), weeks)
	for _, spec := range l.layout.Blocks {
		records, err := l.extractBlock(sheet, spec, standard, detail)
		if err != nil {
			log.Warn("block extraction failed, using empty list", "block", spec.Name, "error", err)
			records = nil
		}
		doc.SetBlock(spec.Name, records)
	}

	if l.layout.Suppliers != nil {
		suppliers, err := parser.ExtractSuppliers(sheet, *l.layout.Suppliers)
		if err != nil {
			log.Warn("supplier extraction failed, using empty list", "error", err)
			suppliers = []model.Record{}
		}
		doc.Suppliers = suppliers
	}
	if len(l.layout.SummaryCells) > 0 {
		doc.SummaryCells = parser.ExtractCells(sheet, l.layout.SummaryCells)
	}

	log.Info("sheet extracted", "rows", doc.RowCounts(), "week_current", weeks.Current, "week_next", weeks.Next)
	return doc, nil
}

func (l *Loader) extractBlock(sheet parser.Sheet, spec parser.BlockSpec, standard, detail parser.ColumnMap) ([]model.Record, error) {
	if d := l.layout.Detail; d != nil && d.Replaces == spec.Name {
		return parser.ExtractDetailTable(sheet, *d)
	}

	records, err := parser.ExtractBlock(sheet, spec, spec.ColumnsFor(standard, detail))
	if err != nil {
		return nil, err
	}
	if aux := l.layout.Cumulative; aux != nil && slices.Contains(aux.Blocks, spec.Name) {
		parser.AttachColumns(sheet, spec, records, aux.Columns)
	}
	return records, nil
}
