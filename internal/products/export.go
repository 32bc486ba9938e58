package products

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/stocktally/backend/internal/middleware"
	"github.com/stocktally/backend/internal/models"
	"github.com/stocktally/backend/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var exportHeader = []string{
	"Name",
	"SKU",
	"Quantity On Hand",
	"Cost Price",
	"Selling Price",
	"Low Stock Threshold",
	"Description",
	"Created At",
}

// Export handles GET /products/export: streams the organization's products
// as an XLSX attachment.
func (h *Handler) Export(c *gin.Context) {
	orgID := middleware.OrganizationID(c)

	list, err := h.store.List(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("list products for export", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to export products")
		return
	}

	data, err := buildExportWorkbook(list)
	if err != nil {
		h.logger.Error("build export workbook", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to export products")
		return
	}

	c.Header("Content-Disposition", "attachment; filename=products.xlsx")
	c.Data(http.StatusOK, xlsxContentType, data)
}

// buildExportWorkbook renders products into a single-sheet XLSX file.
func buildExportWorkbook(list []models.Product) ([]byte, error) {
	f := excelize.NewFile()

	const sheet = "Products"
	index, err := f.NewSheet(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	for col, header := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}

	for i, p := range list {
		row := i + 2
		values := []interface{}{
			p.Name,
			p.SKU,
			p.QuantityOnHand,
			floatOrEmpty(p.CostPrice),
			floatOrEmpty(p.SellingPrice),
			intOrEmpty(p.LowStockThreshold),
			p.Description,
			p.CreatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func floatOrEmpty(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func intOrEmpty(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
