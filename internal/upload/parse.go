package upload

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"unicode/utf8"
)

// CSVPreviewRows is the number of data rows rendered into a CSV preview.
const CSVPreviewRows = 20

// missingCell fills the cells of rows shorter than the header.
const missingCell = "NaN"

var (
	// ErrUnparseable is returned when a data file cannot be read as CSV or UTF-8 text.
	ErrUnparseable = errors.New("unparseable data file")
	// ErrUnsupportedType is returned for data files that are neither CSV nor plain text.
	ErrUnsupportedType = errors.New("unsupported data file type")
)

// IsCSV reports whether a file should be treated as CSV.
func IsCSV(name, contentType string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv") || strings.HasPrefix(contentType, "text/csv")
}

// IsText reports whether a file should be treated as plain text.
func IsText(name, contentType string) bool {
	return strings.EqualFold(filepath.Ext(name), ".txt") || strings.HasPrefix(contentType, "text/plain")
}

// ParseDataFile reads an uploaded CSV or text file and returns its preview.
func ParseDataFile(name, contentType string, r io.Reader) (string, error) {
	switch {
	case IsCSV(name, contentType):
		return csvPreview(r)
	case IsText(name, contentType):
		return textPreview(r)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, name)
	}
}

// csvPreview renders the header and the first CSVPreviewRows records as an
// aligned table with a leading row index column.
func csvPreview(r io.Reader) (string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return "", fmt.Errorf("%w: read csv header: %v", ErrUnparseable, err)
	}

	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "\t%s\t\n", strings.Join(header, "\t"))

	for i := 0; i < CSVPreviewRows; i++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: read csv row %d: %v", ErrUnparseable, i+1, err)
		}
		if len(rec) > len(header) {
			return "", fmt.Errorf("%w: csv row %d has %d fields, header has %d", ErrUnparseable, i+1, len(rec), len(header))
		}
		for len(rec) < len(header) {
			rec = append(rec, missingCell)
		}
		fmt.Fprintf(tw, "%d\t%s\t\n", i, strings.Join(rec, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return "", fmt.Errorf("render csv preview: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func textPreview(r io.Reader) (string, error) {
	limit := MaxPreviewChars * utf8.UTFMax
	data, err := io.ReadAll(io.LimitReader(r, int64(limit)))
	if err != nil {
		return "", fmt.Errorf("read text file: %w", err)
	}
	cut := len(data) == limit

	var b strings.Builder
	for i, n := 0, 0; i < len(data) && n < MaxPreviewChars; n++ {
		ru, size := utf8.DecodeRune(data[i:])
		if ru == utf8.RuneError && size == 1 {
			// A rune split by the read limit is dropped, anything else is corrupt.
			if cut && len(data)-i < utf8.UTFMax {
				break
			}
			return "", fmt.Errorf("%w: file is not valid UTF-8", ErrUnparseable)
		}
		b.WriteRune(ru)
		i += size
	}
	return b.String(), nil
}
