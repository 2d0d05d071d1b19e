package services

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"weatherdash/internal/models"
)

// ErrNoCurrent is returned when a report is requested without current
// conditions; that section is mandatory.
var ErrNoCurrent = errors.New("report requires current weather")

var titleCaser = cases.Title(language.English)

// BuildReport renders the current conditions plus the two daily tables into a
// PDF. An absent or empty forecast or pollution slice omits its section. The AQI
// category column is recomputed from the numeric AQI so the rendered label
// can never drift from the rendered value.
func BuildReport(location string, current *models.CurrentWeather, forecast []models.DailyForecast, pollution []models.DailyPollution) ([]byte, error) {
	if current == nil {
		return nil, ErrNoCurrent
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, fmt.Sprintf("Weather Report for %s", location), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	heading(pdf, "Current Weather")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Temperature: %.2f C", current.Temperature), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Condition: %s", titleCaser.String(current.Condition)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Coordinates: %.4f, %.4f", current.Lat, current.Lon), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	if len(forecast) > 0 {
		heading(pdf, "Daily Forecast")
		tableHeader(pdf, []string{"Date", "Temp (C)", "Condition"}, []float64{35, 30, 75})
		pdf.SetFont("Helvetica", "", 10)
		for _, day := range forecast {
			cell(pdf, 35, day.Date.Format("2006-01-02"))
			cell(pdf, 30, fmt.Sprintf("%.2f", day.Temperature))
			cell(pdf, 75, day.Condition)
			pdf.Ln(-1)
		}
		pdf.Ln(6)
	}

	if len(pollution) > 0 {
		heading(pdf, "Air Pollution Forecast")
		widths := []float64{24, 12, 22, 20, 20, 18, 18, 18, 22}
		tableHeader(pdf, []string{"Date", "AQI", "Category", "PM2.5", "PM10", "NO2", "SO2", "O3", "CO"}, widths)
		pdf.SetFont("Helvetica", "", 9)
		for _, day := range pollution {
			label, err := models.AQILabel(day.AQI)
			if err != nil {
				return nil, fmt.Errorf("rendering pollution table: %w", err)
			}
			cell(pdf, widths[0], day.Date.Format("2006-01-02"))
			cell(pdf, widths[1], fmt.Sprintf("%d", day.AQI))
			cell(pdf, widths[2], label)
			cell(pdf, widths[3], fmt.Sprintf("%.2f", day.PM25))
			cell(pdf, widths[4], fmt.Sprintf("%.2f", day.PM10))
			cell(pdf, widths[5], fmt.Sprintf("%.2f", day.NO2))
			cell(pdf, widths[6], fmt.Sprintf("%.2f", day.SO2))
			cell(pdf, widths[7], fmt.Sprintf("%.2f", day.O3))
			cell(pdf, widths[8], fmt.Sprintf("%.2f", day.CO))
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// ReportFilename builds the download filename for a location.
func ReportFilename(location string) string {
	return fmt.Sprintf("%s_weather_report.pdf", location)
}

func heading(pdf *gofpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, text, "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func tableHeader(pdf *gofpdf.Fpdf, labels []string, widths []float64) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 238, 245)
	for i, label := range labels {
		pdf.CellFormat(widths[i], 7, label, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
}

func cell(pdf *gofpdf.Fpdf, width float64, text string) {
	pdf.CellFormat(width, 6, text, "1", 0, "L", false, 0, "")
}
