package loader

import (
	"bufio"
	"io"
	"strings"

	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

// writeCopyCSV encodes rows for COPY ... WITH (FORMAT csv). In that format an
// unquoted empty field is NULL and a quoted one is the empty string, so every
// present value is quoted and every null is written as nothing.
func writeCopyCSV(w io.Writer, rows [][]pgstitch.Cell) error {
	bw := bufio.NewWriter(w)
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				bw.WriteByte(',')
			}
			if !cell.Valid {
				continue
			}
			bw.WriteByte('"')
			if strings.IndexByte(cell.String, '"') < 0 {
				bw.WriteString(cell.String)
			} else {
				bw.WriteString(strings.ReplaceAll(cell.String, `"`, `""`))
			}
			bw.WriteByte('"')
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
