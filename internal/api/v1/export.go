package v1

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	fallbackExportName = "26SS_MLB_DASHBOARD.xlsx"
)

// ExportExcel 下载原始工作簿
// GET /api/export/excel
func (h *Handler) ExportExcel(c *gin.Context) {
	if h.syncer != nil {
		if err := h.syncer.Ensure(c.Request.Context(), false); err != nil {
			h.logger.Warn("file sync before export failed", "error", err)
		}
	}

	path := h.workbook.Path()
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "엑셀 파일을 찾을 수 없습니다."})
		return
	}

	c.Header("Content-Disposition", contentDisposition(filepath.Base(path)))
	c.Header("Content-Type", xlsxContentType)
	c.File(path)
}

// contentDisposition RFC 5987：ASCII 回退名 + UTF-8 编码名
func contentDisposition(name string) string {
	ascii := asciiName(name)
	if ascii == "" || ascii == ".xlsx" {
		ascii = fallbackExportName
	}
	return `attachment; filename="` + ascii + `"; filename*=UTF-8''` + url.PathEscape(name)
}

func asciiName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
