// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/rizalgns/dnswitch/src/dnswitch"
)

// writeBenchmarkReport exports ranked benchmark scores to an .xlsx file.
func writeBenchmarkReport(path string, scores []dnswitch.ProviderScore) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Benchmark"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("benchmark report: %w", err)
	}

	headers := []string{"Rank", "Provider", "ID", "Median (ms)", "Success Rate", "Samples", "Unreliable"}
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("benchmark report: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("benchmark report: %w", err)
		}
	}

	for row, s := range scores {
		values := []any{
			row + 1,
			s.Provider.Name,
			s.Provider.ID,
			millis(s.Median),
			s.SuccessRate,
			s.Samples,
			s.Unreliable,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return fmt.Errorf("benchmark report: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("benchmark report: %w", err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("benchmark report: %w", err)
	}
	return nil
}
