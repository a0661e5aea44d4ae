package google

import (
	"strings"

	"pesantren/internal/services"
)

var header = []string{
	"Periode", "Bulan", "SPP", "Donasi", "Pengeluaran", "Setoran Tabungan",
	"Penarikan Tabungan", "Total Tabungan", "Santri Aktif", "Saldo Bersih",
	"Dibuat", "Lembaga",
}

// lastColumn is the column letter of the final header cell.
const lastColumn = "L"

func headerRow() []interface{} {
	out := make([]interface{}, len(header))
	for i, h := range header {
		out[i] = h
	}
	return out
}

// reportRow lays out a report in header order. Amounts stay numeric so the
// sheet can sum them.
func reportRow(r services.MonthlyReport) []interface{} {
	return []interface{}{
		r.Key(),
		r.Period(),
		r.TotalSPP,
		r.TotalDonations,
		r.TotalExpenses,
		r.TotalSavingsDeposits,
		r.TotalSavingsWithdrawals,
		r.TotalSavings,
		r.ActiveStudents,
		r.NetBalance,
		r.GeneratedAt.Format("2006-01-02 15:04:05"),
		r.Institution,
	}
}

// targetRow returns the 1-based row holding key in the first column, or the
// row after the last one. An empty sheet gets its first report on row 2,
// below the header.
func targetRow(column [][]interface{}, key string) int {
	for i, cells := range column {
		if len(cells) == 0 {
			continue
		}
		if s, ok := cells[0].(string); ok && strings.TrimSpace(s) == key {
			return i + 1
		}
	}
	if len(column) == 0 {
		return 2
	}
	return len(column) + 1
}
