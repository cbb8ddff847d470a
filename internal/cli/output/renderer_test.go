package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_EffectiveMode(t *testing.T) {
	tests := []struct {
		mode  Mode
		isTTY bool
		want  Mode
	}{
		{ModeAuto, true, ModeText},
		{ModeAuto, false, ModeMarkdown},
		{"", false, ModeMarkdown},
		{ModeJSON, true, ModeJSON},
		{ModeCSV, false, ModeCSV},
		{ModeText, false, ModeText},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, tt.isTTY, tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestNewRenderer_BufferIsNotTTY(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())
}

func TestRenderer_Table(t *testing.T) {
	header := []string{"Table", "Upstream"}
	rows := [][]string{{"sales.orders", "db.public.orders"}}

	tests := []struct {
		mode Mode
		want []string
	}{
		{ModeText, []string{"sales.orders", "db.public.orders", "┌"}},
		{ModeMarkdown, []string{"| sales.orders | db.public.orders |", "---"}},
		{ModeCSV, []string{"sales.orders,db.public.orders"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			var out bytes.Buffer
			NewRendererWithTTY(&out, &bytes.Buffer{}, false, tt.mode).Table(header, rows)
			for _, want := range tt.want {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestRenderer_Lines(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRendererWithTTY(&out, &errOut, false, ModeMarkdown)

	r.Header(2, "Lineage")
	r.KeyValue("Tables", "3")
	r.Warning("t-arg-list", "missing")
	r.Muted("nothing")
	r.Success("done")
	r.Error(errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"## Lineage",
		"",
		"- **Tables**: 3",
		"- `t-arg-list`: missing",
		"_nothing_",
		"done",
	}, lines)
	assert.Equal(t, "Error: boom\n", errOut.String())
}

func TestRenderer_TextLines(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &bytes.Buffer{}, true, ModeAuto)

	r.Header(1, "Lineage")
	r.Warning("t-arg-list", "missing")
	assert.Contains(t, out.String(), "Lineage")
	assert.Contains(t, out.String(), "t-arg-list")
	assert.Contains(t, out.String(), "missing")
}

func TestRenderer_JSON(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &bytes.Buffer{}, false, ModeJSON)
	require.NoError(t, r.JSON(map[string]int{"tables": 2}))
	assert.JSONEq(t, `{"tables": 2}`, out.String())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "### Title", FormatHeader(3, "Title"))
	assert.Equal(t, "- **Key**: value", FormatKeyValue("Key", "value"))
}
