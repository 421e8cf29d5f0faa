package commands

import (
	"fmt"

	"github.com/wonny/pulse/internal/audit"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// statusBadges maps each table status to its terminal presentation. Adding
// a status without a badge falls through to the plain status text.
var statusBadges = map[audit.Status]string{
	audit.StatusOK:   "✅ OK",
	audit.StatusWarn: "⚠️  WARN",
	audit.StatusFail: "❌ FAIL",
}

// gradeBadges maps each overall grade to its terminal presentation.
var gradeBadges = map[audit.Grade]string{
	audit.GradeExcellent: "🟢 Excellent",
	audit.GradeGood:      "🟡 Good",
	audit.GradePoor:      "🔴 Poor",
}

// StatusBadge renders a table status for terminal output
func StatusBadge(status audit.Status) string {
	if badge, ok := statusBadges[status]; ok {
		return badge
	}
	return string(status)
}

// GradeBadge renders an overall grade for terminal output
func GradeBadge(grade audit.Grade) string {
	if badge, ok := gradeBadges[grade]; ok {
		return badge
	}
	return string(grade)
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintTableHeader prints a table header with separator line
func PrintTableHeader(columns []string, widths []int) {
	totalWidth := 0
	for i, col := range columns {
		fmt.Printf("%-*s", widths[i], col)
		totalWidth += widths[i]
		if i < len(columns)-1 {
			fmt.Print("  ")
			totalWidth += 2
		}
	}
	fmt.Println()

	for i := 0; i < totalWidth; i++ {
		fmt.Print("─")
	}
	fmt.Println()
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}
