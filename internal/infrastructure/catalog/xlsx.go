package catalog

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
)

// LoadXLSX reads controls from the first sheet of a workbook. The first row
// is a header naming the columns id, title, description and
// key_requirements; requirements are separated by semicolons or newlines.
func LoadXLSX(path string) (*Catalog, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open controls workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("controls workbook %q has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read controls sheet: %w", err)
	}
	controls, err := controlsFromRows(rows)
	if err != nil {
		return nil, err
	}
	return New(controls)
}

func controlsFromRows(rows [][]string) ([]domain.Control, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	cols := map[string]int{}
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["id"]; !ok {
		return nil, fmt.Errorf("controls sheet header has no id column")
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]domain.Control, 0, len(rows)-1)
	for _, row := range rows[1:] {
		id := cell(row, "id")
		if id == "" {
			continue
		}
		out = append(out, domain.Control{
			ID:              id,
			Title:           cell(row, "title"),
			Description:     cell(row, "description"),
			KeyRequirements: splitRequirements(cell(row, "key_requirements")),
		})
	}
	return out, nil
}

func splitRequirements(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == '\n' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// WriteXLSX exports controls to a workbook readable by LoadXLSX.
func WriteXLSX(path string, controls []domain.Control) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	headers := []string{"id", "title", "description", "key_requirements"}
	for i, h := range headers {
		cellName, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cellName, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for r, c := range controls {
		values := []string{c.ID, c.Title, c.Description, strings.Join(c.KeyRequirements, "; ")}
		for i, v := range values {
			cellName, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cellName, v); err != nil {
				return fmt.Errorf("write control %s: %w", c.ID, err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save controls workbook: %w", err)
	}
	return nil
}
