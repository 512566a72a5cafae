// internal/api/export_handler.go
// 价格历史导出 API
package api

import (
	"bytes"
	"net/http"
	"time"

	"tapmarket/internal/export"

	"github.com/gin-gonic/gin"
)

// exportHistoryCSV 导出当日价格历史为 CSV
// GET /api/v1/export/history.csv
func (s *Server) exportHistoryCSV(c *gin.Context) {
	rows, err := s.history.AllHistory(c.Request.Context())
	if err != nil {
		internalError(c, "failed to load history")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteHistoryCSV(&buf, rows); err != nil {
		internalError(c, "failed to build csv")
		return
	}

	filename := "price_history_" + time.Now().Format("20060102") + ".csv"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// exportHistoryXLSX 导出当日价格历史为 Excel
// GET /api/v1/export/history.xlsx
func (s *Server) exportHistoryXLSX(c *gin.Context) {
	rows, err := s.history.AllHistory(c.Request.Context())
	if err != nil {
		internalError(c, "failed to load history")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteHistoryXLSX(&buf, rows); err != nil {
		internalError(c, "failed to build xlsx")
		return
	}

	filename := "price_history_" + time.Now().Format("20060102") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}
