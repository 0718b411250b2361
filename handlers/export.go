package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gocarina/gocsv"
	"github.com/tealeg/xlsx"
	"go.uber.org/zap"

	"storefront-api/models"
)

const exportTimeLayout = "2006-01-02 15:04:05"

// productRow is one line of the catalog export.
type productRow struct {
	ID          string `csv:"ID"`
	Name        string `csv:"Name"`
	Description string `csv:"Description"`
	Price       string `csv:"Price"`
	Category    string `csv:"Category"`
	Featured    bool   `csv:"Featured"`
	Details     string `csv:"Details"`
	Recipe      string `csv:"Recipe"`
	ImageURL    string `csv:"Image"`
	CreatedAt   string `csv:"CreatedAt"`
	UpdatedAt   string `csv:"UpdatedAt"`
}

var productHeaders = []string{
	"ID", "Name", "Description", "Price", "Category", "Featured",
	"Details", "Recipe", "Image", "CreatedAt", "UpdatedAt",
}

// escapeCell stops spreadsheet applications from evaluating admin-entered text
// as a formula.
func escapeCell(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

func toProductRow(p models.Product) *productRow {
	row := &productRow{
		ID:          p.ID,
		Name:        escapeCell(p.Name),
		Description: escapeCell(p.Description),
		Price:       p.Price.StringFixed(2),
		Category:    escapeCell(p.Category),
		Featured:    p.Featured,
		Details:     escapeCell(strings.Join(p.Details, "; ")),
		ImageURL:    escapeCell(p.ImageURL),
		CreatedAt:   p.CreatedAt.Format(exportTimeLayout),
		UpdatedAt:   p.UpdatedAt.Format(exportTimeLayout),
	}
	if p.Recipe != nil {
		row.Recipe = escapeCell(p.Recipe.Name)
	}
	return row
}

// ExportProducts downloads the catalog as xlsx (default) or csv (admin)
func (h *Handler) ExportProducts(c *gin.Context) {
	products := h.Products.List(c.Request.Context())
	rows := make([]*productRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, toProductRow(p))
	}

	switch strings.ToLower(c.DefaultQuery("format", "xlsx")) {
	case "csv":
		writeProductsCSV(c, rows)
	case "xlsx":
		writeProductsExcel(c, rows)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid format. Must be: xlsx or csv"})
	}
}

func writeProductsCSV(c *gin.Context, rows []*productRow) {
	out, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		zap.L().Error("csv export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write CSV file"})
		return
	}
	c.Header("Content-Disposition", "attachment; filename=products.csv")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", out)
}

func writeProductsExcel(c *gin.Context, rows []*productRow) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel sheet"})
		return
	}

	headerRow := sheet.AddRow()
	for _, h := range productHeaders {
		headerRow.AddCell().SetValue(h)
	}
	for _, p := range rows {
		row := sheet.AddRow()
		row.AddCell().SetValue(p.ID)
		row.AddCell().SetValue(p.Name)
		row.AddCell().SetValue(p.Description)
		row.AddCell().SetValue(p.Price)
		row.AddCell().SetValue(p.Category)
		row.AddCell().SetBool(p.Featured)
		row.AddCell().SetValue(p.Details)
		row.AddCell().SetValue(p.Recipe)
		row.AddCell().SetValue(p.ImageURL)
		row.AddCell().SetValue(p.CreatedAt)
		row.AddCell().SetValue(p.UpdatedAt)
	}

	c.Header("Content-Disposition", "attachment; filename=products.xlsx")
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Expires", "0")
	if err := file.Write(c.Writer); err != nil {
		zap.L().Error("excel export failed", zap.Error(err))
	}
}
