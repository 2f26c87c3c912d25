package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// RenderMatrix draws the presence matrix with one row per union column and
// one numbered column per readable file, followed by a file legend and the
// unreadable files.
func RenderMatrix(m *pgstitch.PresenceMatrix, unreadable []*pgstitch.UnreadableFileError) string {
	var b strings.Builder

	if m != nil && len(m.Files) > 0 {
		headers := make([]string, 0, len(m.Files)+1)
		headers = append(headers, "column")
		for i := range m.Files {
			headers = append(headers, strconv.Itoa(i+1))
		}

		rows := make([][]string, len(m.Columns))
		for j, col := range m.Columns {
			row := make([]string, 0, len(m.Files)+1)
			row = append(row, col)
			for i := range m.Files {
				if m.Present[i][j] {
					row = append(row, SymbolCheck)
				} else {
					row = append(row, SymbolMissing)
				}
			}
			rows[j] = row
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(BorderStyle).
			StyleFunc(func(row, col int) lipgloss.Style {
				switch {
				case row == table.HeaderRow:
					return HeaderStyle
				case col > 0 && rows[row][col] == SymbolCheck:
					return CellStyle.Foreground(ColorSuccess)
				case col > 0:
					return CellStyle.Foreground(ColorWarning)
				}
				return CellStyle
			}).
			Headers(headers...).
			Rows(rows...)

		b.WriteString(t.String())
		b.WriteString("\n\n")

		for i, f := range m.Files {
			fmt.Fprintf(&b, "%3d  %s (%d columns, %s)\n", i+1, f.Path, len(f.Columns), humanBytes(f.SizeBytes))
		}

		if m.AllEqual() {
			b.WriteString(SuccessStyle.Render(SymbolCheck+" all files share the same columns") + "\n")
		} else {
			fmt.Fprintf(&b, "%s %d of %d column(s) are missing from some files; they load as NULL there\n",
				WarningStyle.Render("!"), len(m.PartialColumns()), len(m.Columns))
		}
	}

	if len(unreadable) > 0 {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("%s %d unreadable file(s):", SymbolCross, len(unreadable))) + "\n")
		for _, u := range unreadable {
			fmt.Fprintf(&b, "  %s %s: %v\n", SymbolBullet, u.Path, u.Err)
		}
	}

	return b.String()
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
