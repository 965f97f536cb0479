// Package export writes the static snapshot consumed by the offline
// frontend: data.json, params.json and, optionally, an Excel workbook.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/seenimoa/cnbtaylor/internal/app"
	"github.com/seenimoa/cnbtaylor/internal/panel"
	"github.com/seenimoa/cnbtaylor/internal/series"
	"github.com/seenimoa/cnbtaylor/pkg/models"
	"github.com/seenimoa/cnbtaylor/pkg/utils"
)

// File names written by WriteJSON.
const (
	DataFile   = "data.json"
	ParamsFile = "params.json"
)

// Sheet names written by WriteWorkbook.
const (
	PanelSheet  = "panel"
	ParamsSheet = "params"
)

// DataDocument is the content of data.json.
type DataDocument struct {
	GeneratedAt string `json:"generated_at"`
	app.PanelData
}

// WriteJSON writes data.json (compact) and params.json (indented) into dir,
// creating it if needed. An empty panel is an error.
func WriteJSON(dir string, p *panel.Panel, params models.RuleParams, now time.Time) error {
	if p.Empty() {
		return app.ErrNoData
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	data, err := json.Marshal(DataDocument{
		GeneratedAt: now.UTC().Format(time.RFC3339Nano),
		PanelData:   app.NewPanelData(p),
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", DataFile, err)
	}
	if err := os.WriteFile(filepath.Join(dir, DataFile), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", DataFile, err)
	}

	body, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", ParamsFile, err)
	}
	if err := os.WriteFile(filepath.Join(dir, ParamsFile), append(body, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", ParamsFile, err)
	}
	return nil
}

// WriteWorkbook saves the panel and the parameters as an .xlsx file. Gaps
// are left as empty cells.
func WriteWorkbook(path string, p *panel.Panel, params models.RuleParams) error {
	if p.Empty() {
		return app.ErrNoData
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), PanelSheet); err != nil {
		return err
	}
	header := []any{"date", panel.ColRate, panel.ColCPI, panel.ColGDP, panel.ColTarget}
	if err := f.SetSheetRow(PanelSheet, "A1", &header); err != nil {
		return err
	}
	for i := 0; i < p.Len(); i++ {
		row := p.Row(i)
		cells := []any{utils.FormatMonth(row.Date), cell(row.Rate), cell(row.CPI), cell(row.GDP), cell(row.Target)}
		ref, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(PanelSheet, ref, &cells); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(ParamsSheet); err != nil {
		return err
	}
	rows := [][]any{
		{"parameter", "value"},
		{"rho", params.Rho},
		{"rstar", params.RStar},
		{"alpha", params.Alpha},
		{"beta", params.Beta},
	}
	for i, r := range rows {
		ref, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(ParamsSheet, ref, &r); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// cell returns the value to store, nil for a gap.
func cell(v series.Value) any {
	if x, ok := v.Get(); ok {
		return utils.Round(x, 4)
	}
	return nil
}
