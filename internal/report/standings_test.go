package report_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/flit/fantasy-engine/internal/model"
	"github.com/flit/fantasy-engine/internal/report"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestStandings_WritesRankedRows(t *testing.T) {
	league := &model.League{
		ID:          "l1",
		Name:        "Wall St. [Rookies]",
		CurrentWeek: 3,
		Settings:    model.LeagueSettings{SeasonLength: 10},
	}
	rows := []model.Standing{
		{Rank: 1, UserID: "u2", Name: "Sam", PortfolioName: "Sam's Portfolio", TotalValue: d(10512.345), ReturnPercent: d(5.12)},
		{Rank: 2, UserID: "u1", Name: "Alex", PortfolioName: "Alex's Portfolio", TotalValue: d(9800), ReturnPercent: d(-2)},
	}

	data, err := report.Standings(league, rows)
	if err != nil {
		t.Fatalf("Standings: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 1 || sheets[0] != "Wall St. Rookies" {
		t.Fatalf("sheets = %v, want [Wall St. Rookies]", sheets)
	}
	got, err := f.GetRows(sheets[0])
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("rows = %d, want title + header + 2", len(got))
	}
	if got[0][0] != "Wall St. [Rookies]: week 3 of 10" {
		t.Errorf("title = %q", got[0][0])
	}
	if got[2][0] != "1" || got[2][1] != "Sam" || got[2][3] != "10512.35" {
		t.Errorf("first row = %v", got[2])
	}
	if got[3][4] != "-2" {
		t.Errorf("second row return = %q, want -2", got[3][4])
	}
}

func TestStandings_Empty(t *testing.T) {
	_, err := report.Standings(&model.League{ID: "l1", Name: "Empty"}, nil)
	if !errors.Is(err, report.ErrNoStandings) {
		t.Errorf("err = %v, want ErrNoStandings", err)
	}
}
