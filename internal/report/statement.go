// Package report renders pool statements as XLSX workbooks.
package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"gigshield.org/internal/domain"
)

const (
	SummarySheet = "Pool"
	ClaimsSheet  = "Claims"
)

// ClaimsHeader is the first row of the claims sheet.
var ClaimsHeader = []string{
	"Claim ID", "Worker", "Amount", "Amount (SOL)", "Status",
	"Votes For", "Votes Against", "Submitted", "Voting Deadline", "Resolved",
}

// PoolStatement builds a workbook with the pool's parameters and totals on
// one sheet and every claim on another.
func PoolStatement(pool domain.Pool, vaultBalance uint64, claims []domain.Claim, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(ClaimsSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	summary := [][]any{
		{"Pool", pool.Key()},
		{"Admin", pool.Admin},
		{"Pool ID", pool.ID},
		{"Category", string(pool.Category)},
		{"Premium rate (bps)", int(pool.PremiumRateBps)},
		{"Max payout", pool.MaxPayout},
		{"Total deposits", pool.TotalDeposits},
		{"Total claims paid", pool.TotalClaimsPaid},
		{"Vault balance", vaultBalance},
		{"Vault balance (SOL)", domain.FormatSOL(vaultBalance)},
		{"Active policies", int(pool.ActivePolicies)},
		{"Active", pool.Active},
		{"Created", pool.CreatedAt.UTC().Format(time.RFC3339)},
		{"Generated", generatedAt.UTC().Format(time.RFC3339)},
	}
	for i, row := range summary {
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(SummarySheet, "A1", fmt.Sprintf("A%d", len(summary)), bold); err != nil {
		return nil, fmt.Errorf("summary style: %w", err)
	}
	if err := f.SetColWidth(SummarySheet, "A", "B", 24); err != nil {
		return nil, fmt.Errorf("summary width: %w", err)
	}

	header := make([]any, len(ClaimsHeader))
	for i, h := range ClaimsHeader {
		header[i] = h
	}
	if err := setRow(f, ClaimsSheet, 1, header); err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(ClaimsHeader), 1)
	if err := f.SetCellStyle(ClaimsSheet, "A1", last, bold); err != nil {
		return nil, fmt.Errorf("claims style: %w", err)
	}
	for i, c := range claims {
		resolved := ""
		if c.ResolvedAt != nil {
			resolved = c.ResolvedAt.UTC().Format(time.RFC3339)
		}
		row := []any{
			c.ID, c.Worker, c.Amount, domain.FormatSOL(c.Amount), string(c.Status()),
			int(c.Votes.For), int(c.Votes.Against),
			c.CreatedAt.UTC().Format(time.RFC3339), c.Deadline.UTC().Format(time.RFC3339), resolved,
		}
		if err := setRow(f, ClaimsSheet, i+2, row); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(ClaimsSheet, "A", "J", 18); err != nil {
		return nil, fmt.Errorf("claims width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("%s row %d: %w", sheet, row, err)
	}
	return nil
}
