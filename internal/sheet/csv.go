package sheet

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
)

// readCSV reads a comma or semicolon separated file. The delimiter is
// guessed from the header line.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening csv %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, _ := br.Peek(4096)

	r := gocsv.LazyCSVReader(br)
	if cr, ok := r.(*csv.Reader); ok {
		cr.Comma = sniffDelimiter(string(head))
		cr.FieldsPerRecord = -1
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv %s: %w", path, err)
	}

	return records, nil
}

func sniffDelimiter(head string) rune {
	line, _, _ := strings.Cut(head, "\n")
	best, bestCount := ',', strings.Count(line, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
