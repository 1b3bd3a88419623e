package v1

import (
	"errors"
	"net/http"
	"os"
	"slices"

	"github.com/gin-gonic/gin"

	"mlbdash/internal/service/excel"
)

// SheetsResponse 工作表诊断
type SheetsResponse struct {
	FilePath     string   `json:"file_path"`
	Sheets       []string `json:"sheets"`
	CurrentSheet string   `json:"current_sheet"`
	SheetExists  bool     `json:"sheet_exists"`
	FileExists   bool     `json:"file_exists"`
	FileReadable bool     `json:"file_readable"`
	Error        string   `json:"error,omitempty"`
	Suggestion   string   `json:"suggestion,omitempty"`
}

// ListSheets 列出工作簿中的工作表（诊断用，失败也返回 200）
// GET /api/sheets
func (h *Handler) ListSheets(c *gin.Context) {
	resp := SheetsResponse{
		FilePath:     h.workbook.Path(),
		Sheets:       []string{},
		CurrentSheet: h.sheet,
	}
	if _, err := os.Stat(resp.FilePath); err == nil {
		resp.FileExists = true
	}

	names, err := h.workbook.SheetNames()
	if err != nil {
		resp.Error = err.Error()
		var le *excel.LoadError
		if errors.As(err, &le) {
			resp.Suggestion = le.Hint()
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	resp.Sheets = names
	resp.FileReadable = true
	resp.SheetExists = slices.Contains(names, h.sheet)
	if !resp.SheetExists {
		resp.Suggestion = "set SUMMARY_SHEET to one of the listed sheets"
	}
	c.JSON(http.StatusOK, resp)
}
