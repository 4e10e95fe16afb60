// Package report renders league data as spreadsheet downloads.
package report

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/flit/fantasy-engine/internal/model"
)

// ContentType is the MIME type of the workbooks produced here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var ErrNoStandings = errors.New("report: no standings to export")

// maxSheetName is the Excel limit on sheet name length.
const maxSheetName = 31

var standingsHeader = []string{"Rank", "Member", "Portfolio", "Total Value", "Return %"}

// Standings writes a league's ranking table to an xlsx workbook.
func Standings(league *model.League, rows []model.Standing) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoStandings
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("close workbook", "league", league.ID, "err", err)
		}
	}()

	sheet := sheetName(league.Name)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	last := fmt.Sprintf("%c1", 'A'+len(standingsHeader)-1)
	if err := f.MergeCell(sheet, "A1", last); err != nil {
		return nil, err
	}
	_ = f.SetCellStr(sheet, "A1", fmt.Sprintf("%s: week %d of %d", league.Name, league.CurrentWeek, league.Settings.SeasonLength))

	titleStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Font:      &excelize.Font{Bold: true, Size: 12},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#cfe2f3"}},
	})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", titleStyle); err != nil {
		return nil, fmt.Errorf("apply title style: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A2", &standingsHeader); err != nil {
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A2", fmt.Sprintf("%c2", 'A'+len(standingsHeader)-1), headerStyle); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}

	for i, s := range rows {
		row := i + 3
		_ = f.SetCellInt(sheet, fmt.Sprintf("A%d", row), int64(s.Rank))
		_ = f.SetCellStr(sheet, fmt.Sprintf("B%d", row), s.Name)
		_ = f.SetCellStr(sheet, fmt.Sprintf("C%d", row), s.PortfolioName)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), s.TotalValue.Round(2).InexactFloat64())
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), s.ReturnPercent.Round(2).InexactFloat64())
	}
	_ = f.SetColWidth(sheet, "B", "C", 24)
	_ = f.SetColWidth(sheet, "D", "E", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetName trims a league name to something Excel accepts.
func sheetName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return "Standings"
	}
	if len(out) > maxSheetName {
		out = out[:maxSheetName]
	}
	return string(out)
}
