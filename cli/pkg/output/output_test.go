package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func init() {
	color.NoColor = true
}

type sample struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func newPrinter(format Format) (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return New(&out, &errOut, format), &out, &errOut
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "table", want: FormatTable},
		{in: "JSON", want: FormatJSON},
		{in: "yaml", want: FormatYAML},
		{in: "xml", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMessages(t *testing.T) {
	p, out, errOut := newPrinter(FormatTable)

	p.Success("Created %d items", 5)
	p.Info("plain info")
	p.Warn("careful")
	p.Error("failed: %s", "boom")

	assert.Equal(t, "✓ Created 5 items\nplain info\n⚠ careful\n", out.String())
	assert.Equal(t, "✗ failed: boom\n", errOut.String())
}

func TestPrint_JSON(t *testing.T) {
	p, out, _ := newPrinter(FormatJSON)

	require.NoError(t, p.Print(sample{Name: "a", Count: 2}, nil))

	var got sample
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, sample{Name: "a", Count: 2}, got)
	assert.Contains(t, out.String(), "\n  \"name\"")
}

func TestPrint_YAML(t *testing.T) {
	p, out, _ := newPrinter(FormatYAML)

	require.NoError(t, p.Print([]sample{{Name: "a", Count: 2}}, nil))

	var got []sample
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, []sample{{Name: "a", Count: 2}}, got)
}

func TestPrint_Table(t *testing.T) {
	p, out, _ := newPrinter(FormatTable)

	err := p.Print(nil, func() *Table {
		return NewTable("NAME", "COUNT").
			AddRow("alpha", "1").
			AddRow("b", "12345")
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "NAME   COUNT  ", lines[0])
	assert.Equal(t, "-----  -----  ", lines[1])
	assert.Equal(t, "alpha  1      ", lines[2])
	assert.Equal(t, "b      12345  ", lines[3])
}

func TestTable_RaggedRows(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable("A", "B").AddRow("only").AddRow("x", "y", "dropped")
	assert.Equal(t, 2, table.Len())

	table.Render(&buf)
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "only     ")
}
