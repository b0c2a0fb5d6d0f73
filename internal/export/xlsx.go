package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"spacebook/internal/config"
	"spacebook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Lister is the read side the exporter needs.
type Lister interface {
	ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error)
}

var headers = []string{
	"ID", "Дата", "Начало", "Конец", "Помещение", "Пользователь", "Email",
	"Причина", "Статус", "Серия", "Проверил", "Создано",
}

var statusColors = map[string]string{
	models.StatusPending:  "#FFF2CC",
	models.StatusApproved: "#E2EFDA",
	models.StatusRejected: "#F8CBAD",
}

type XLSXExporter struct {
	lister Lister
	config config.ExportConfig
	logger *zerolog.Logger
	now    func() time.Time
}

func NewXLSXExporter(lister Lister, cfg config.ExportConfig, logger *zerolog.Logger) *XLSXExporter {
	if cfg.SheetName == "" {
		cfg.SheetName = "Reservations"
	}
	return &XLSXExporter{lister: lister, config: cfg, logger: logger, now: time.Now}
}

// Write renders the reservations matching filter as an xlsx workbook into w.
func (e *XLSXExporter) Write(ctx context.Context, w io.Writer, filter models.ReservationFilter) (int, error) {
	reservations, err := e.lister.ListReservations(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("error getting reservations: %w", err)
	}

	f, err := e.build(reservations)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("error writing workbook: %w", err)
	}
	return len(reservations), nil
}

// SaveFile writes the workbook under the configured exports path and returns its location.
func (e *XLSXExporter) SaveFile(ctx context.Context, filter models.ReservationFilter) (string, error) {
	if err := os.MkdirAll(e.config.Path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	reservations, err := e.lister.ListReservations(ctx, filter)
	if err != nil {
		return "", fmt.Errorf("error getting reservations: %w", err)
	}

	f, err := e.build(reservations)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := fmt.Sprintf("reservations_%s.xlsx", e.now().Format("20060102_150405"))
	filePath := filepath.Join(e.config.Path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	if e.logger != nil {
		e.logger.Info().Str("file_path", filePath).Int("rows", len(reservations)).Msg("Excel file created")
	}
	return filePath, nil
}

func (e *XLSXExporter) build(reservations []*models.Reservation) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := e.config.SheetName

	index, err := f.NewSheet(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(sheet, "A1", lastHeader, headerStyle)

	styles := make(map[string]int, len(statusColors))
	for status, color := range statusColors {
		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err == nil {
			styles[status] = style
		}
	}

	for i, r := range reservations {
		row := i + 2
		values := []interface{}{
			r.ID,
			r.DateString(),
			r.StartTime,
			r.EndTime,
			r.SpaceName,
			r.UserName,
			r.UserEmail,
			r.Reason,
			r.Status,
			seriesLabel(r),
			r.ReviewerName,
			r.CreatedAt.Format("2006-01-02 15:04"),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, start, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("error writing row %d: %w", row, err)
		}

		statusCell, _ := excelize.CoordinatesToCellName(9, row)
		if style, ok := styles[r.Status]; ok {
			_ = f.SetCellStyle(sheet, statusCell, statusCell, style)
		}
	}

	_ = f.SetColWidth(sheet, "A", "D", 12)
	_ = f.SetColWidth(sheet, "E", "G", 22)
	_ = f.SetColWidth(sheet, "H", "H", 40)
	_ = f.SetColWidth(sheet, "I", "L", 16)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	return f, nil
}

func seriesLabel(r *models.Reservation) string {
	switch {
	case r.IsSeriesParent():
		return fmt.Sprintf("%s (%d)", r.RecurrenceType, r.ChildrenCount)
	case r.ParentReservationID != nil:
		return fmt.Sprintf("#%d", *r.ParentReservationID)
	default:
		return ""
	}
}
