package upload

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataFile_CSVPreview(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("ping,range_m,intensity\n")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&sb, "%d,%d,0.%d\n", i, i*10, i%10)
	}

	preview, err := ParseDataFile("pings.csv", "text/csv", strings.NewReader(sb.String()))
	require.NoError(t, err)

	lines := strings.Split(preview, "\n")
	require.Len(t, lines, CSVPreviewRows+1)
	assert.Contains(t, lines[0], "range_m")
	assert.Contains(t, lines[20], "190")
	assert.NotContains(t, preview, "200")
}

func TestParseDataFile_RaggedCSV(t *testing.T) {
	preview, err := ParseDataFile("pings.csv", "text/csv", strings.NewReader("time,depth,echo\n1,12.5,strong\n2,13.0\n"))
	require.NoError(t, err)
	lines := strings.Split(preview, "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[2]), "NaN"), lines[2])
	assert.Contains(t, lines[2], "13.0")

	_, err = ParseDataFile("bad.csv", "", strings.NewReader("a,b\n1,2,3\n"))
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestParseDataFile_EmptyCSV(t *testing.T) {
	_, err := ParseDataFile("empty.csv", "text/csv", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestParseDataFile_Text(t *testing.T) {
	body := strings.Repeat("sonar ", 1000)
	preview, err := ParseDataFile("notes.txt", "text/plain; charset=utf-8", strings.NewReader(body))
	require.NoError(t, err)
	assert.Len(t, preview, MaxPreviewChars)
	assert.True(t, strings.HasPrefix(body, preview))
}

func TestParseDataFile_InvalidUTF8(t *testing.T) {
	_, err := ParseDataFile("notes.txt", "", strings.NewReader("ok \xff\xfe bad"))
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestParseDataFile_Unsupported(t *testing.T) {
	_, err := ParseDataFile("scan.bin", "application/octet-stream", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
