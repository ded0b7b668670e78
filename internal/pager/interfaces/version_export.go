package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"quake-pager/internal/observability/metrics"
	pager "quake-pager/internal/pager/domain"
)

// BuildVersionPDF renders a one-page summary for a published version.
func BuildVersionPDF(version *pager.Version) ([]byte, error) {
	start := time.Now()
	data, err := buildVersionPDF(version)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.ObserveExport("pdf", result, time.Since(start))
	return data, err
}

func buildVersionPDF(version *pager.Version) ([]byte, error) {
	if version == nil {
		return nil, fmt.Errorf("export: nil version")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, fmt.Sprintf("PAGER Alert %s - %s", version.SummaryLevel, version.EventCode))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Version: %d", version.Number))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Magnitude: %.1f", version.Magnitude))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Origin: %s", version.OriginTime.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Location: %s (%.4f, %.4f), depth %.1f km",
		version.Location, version.Lat, version.Lon, version.DepthKM))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Max intensity: MMI %d (%.0f people)",
		version.MaxIntensity, version.MaxIntensityPopulation))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Fatality alert: %s / Economic alert: %s",
		version.FatalityLevel, version.EconomicLevel))
	pdf.Ln(8)

	if version.Comments.Impact1 != "" {
		pdf.MultiCell(0, 5, version.Comments.Impact1, "", "L", false)
		pdf.Ln(2)
	}
	if version.Comments.Structure != "" {
		pdf.MultiCell(0, 5, version.Comments.Structure, "", "L", false)
		pdf.Ln(2)
	}
	if version.Comments.Secondary != "" {
		pdf.MultiCell(0, 5, version.Comments.Secondary, "", "L", false)
		pdf.Ln(2)
	}
	pdf.Ln(2)

	// Population exposure table.
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "MMI", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Population Exposed", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for mmi := pager.IntensityBins; mmi >= 1; mmi-- {
		exposed := version.PopulationExposure.Total[mmi-1]
		if exposed == 0 {
			continue
		}
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", mmi), "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 6, fmt.Sprintf("%.0f", exposed), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	if len(version.Cities) > 0 {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(60, 6, "City", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "MMI", "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, "Population", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, city := range version.Cities {
			pdf.CellFormat(60, 6, city.Name, "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%.1f", city.MMI), "1", 0, "C", false, 0, "")
			pdf.CellFormat(50, 6, fmt.Sprintf("%.0f", city.Population), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}

	if len(version.Historical) > 0 {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 6, "Date", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Magnitude", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Distance (km)", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Deaths", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, event := range version.Historical {
			pdf.CellFormat(40, 6, event.Time.Format("2006-01-02"), "1", 0, "C", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%.1f", event.Magnitude), "1", 0, "C", false, 0, "")
			pdf.CellFormat(40, 6, fmt.Sprintf("%.0f", event.DistanceKM), "1", 0, "R", false, 0, "")
			pdf.CellFormat(40, 6, fmt.Sprintf("%.0f", event.ShakingDeaths), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildVersionXLSX renders a workbook with summary, exposure and loss sheets.
func BuildVersionXLSX(version *pager.Version) ([]byte, error) {
	start := time.Now()
	data, err := buildVersionXLSX(version)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.ObserveExport("xlsx", result, time.Since(start))
	return data, err
}

func buildVersionXLSX(version *pager.Version) ([]byte, error) {
	if version == nil {
		return nil, fmt.Errorf("export: nil version")
	}

	f := excelize.NewFile()
	summarySheet := "summary"
	exposureSheet := "exposure"
	lossSheet := "losses"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(exposureSheet)
	f.NewSheet(lossSheet)

	_ = f.SetCellValue(summarySheet, "A1", "PAGER Alert")
	_ = f.SetCellValue(summarySheet, "A3", "Event")
	_ = f.SetCellValue(summarySheet, "B3", version.EventCode)
	_ = f.SetCellValue(summarySheet, "A4", "Version")
	_ = f.SetCellValue(summarySheet, "B4", version.Number)
	_ = f.SetCellValue(summarySheet, "A5", "Summary Level")
	_ = f.SetCellValue(summarySheet, "B5", version.SummaryLevel.String())
	_ = f.SetCellValue(summarySheet, "A6", "Fatality Level")
	_ = f.SetCellValue(summarySheet, "B6", version.FatalityLevel.String())
	_ = f.SetCellValue(summarySheet, "A7", "Economic Level")
	_ = f.SetCellValue(summarySheet, "B7", version.EconomicLevel.String())
	_ = f.SetCellValue(summarySheet, "A8", "Magnitude")
	_ = f.SetCellValue(summarySheet, "B8", version.Magnitude)
	_ = f.SetCellValue(summarySheet, "A9", "Origin Time")
	_ = f.SetCellValue(summarySheet, "B9", version.OriginTime.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A10", "Location")
	_ = f.SetCellValue(summarySheet, "B10", version.Location)
	_ = f.SetCellValue(summarySheet, "A11", "Max Intensity")
	_ = f.SetCellValue(summarySheet, "B11", version.MaxIntensity)

	_ = f.SetCellValue(exposureSheet, "A1", "Country")
	for mmi := 1; mmi <= pager.IntensityBins; mmi++ {
		cell, _ := excelize.CoordinatesToCellName(mmi+1, 1)
		_ = f.SetCellValue(exposureSheet, cell, fmt.Sprintf("MMI %d", mmi))
	}
	_ = f.SetCellValue(exposureSheet, "A2", "Total")
	for mmi := 1; mmi <= pager.IntensityBins; mmi++ {
		cell, _ := excelize.CoordinatesToCellName(mmi+1, 2)
		_ = f.SetCellValue(exposureSheet, cell, version.PopulationExposure.Total[mmi-1])
	}
	for i, country := range version.PopulationExposure.Countries {
		row := i + 3
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(exposureSheet, cell, country.CountryCode)
		for mmi := 1; mmi <= pager.IntensityBins; mmi++ {
			cell, _ := excelize.CoordinatesToCellName(mmi+1, row)
			_ = f.SetCellValue(exposureSheet, cell, country.Exposure[mmi-1])
		}
	}

	_ = f.SetCellValue(lossSheet, "A1", "Kind")
	_ = f.SetCellValue(lossSheet, "B1", "Bin Min")
	_ = f.SetCellValue(lossSheet, "C1", "Bin Max")
	_ = f.SetCellValue(lossSheet, "D1", "Probability")
	row := 2
	for _, bin := range version.FatalityBins {
		_ = f.SetCellValue(lossSheet, fmt.Sprintf("A%d", row), "fatalities")
		_ = f.SetCellValue(lossSheet, fmt.Sprintf("B%d", row), bin.Min)
		_ = f.SetCellValue(lossSheet, fmt.Sprintf("C%d", row), bin.Max)
		_ = f.SetCellValue(lossSheet, fmt.Sprintf("D%d", row), bin.Probability)
		row++
	}
	for _, bin := range version.EconomicBins {
		_ = f.SetCellValue(lossSheet, fmt.Sprintf("A%d", row), "dollars")
		_ = f.SetCellValue(lossSheet, fmt.Sprintf("B%d", row), bin.Min)
		_ = f.SetCellValue(lossSheet, fmt.Sprintf("C%d", row), bin.Max)
		_ = f.SetCellValue(lossSheet, fmt.Sprintf("D%d", row), bin.Probability)
		row++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
