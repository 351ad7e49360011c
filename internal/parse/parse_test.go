package parse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripWrapping(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "fenced json block",
			input: "```json\n[{\"produto\":\"Arroz\"}]\n```",
			want:  "[{\"produto\":\"Arroz\"}]",
		},
		{
			name:  "plain fence without language tag",
			input: "```\n[1,2]\n```",
			want:  "[1,2]",
		},
		{
			name:  "single line fence",
			input: "```json [{\"produto\":\"Arroz\",\"quantidade\":1}] ```",
			want:  "[{\"produto\":\"Arroz\",\"quantidade\":1}]",
		},
		{
			name:  "already clean",
			input: "[{\"a\":1}]",
			want:  "[{\"a\":1}]",
		},
		{
			name:  "surrounding whitespace only",
			input: "  \n [1] \t\n",
			want:  "[1]",
		},
		{
			name:  "trailing fence only",
			input: "[1]\n```",
			want:  "[1]",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripWrapping(tt.input)
			assert.Equal(t, tt.want, got)

			// Stripping is idempotent: strip(strip(x)) == strip(x).
			assert.Equal(t, got, StripWrapping(got))
		})
	}
}

func TestRecords_FencedArray(t *testing.T) {
	raw := "```json [{\"produto\":\"Arroz\",\"quantidade\":1,\"categoria\":\"Alimentação\",\"preco\":5.5}] ```"

	records, err := Records(raw)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "Arroz", records[0]["produto"])
	assert.Equal(t, 5.5, records[0]["preco"])
}

func TestRecords_NotJSON(t *testing.T) {
	_, err := Records("not json at all")

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindMalformedStructure, perr.Kind)
	assert.Equal(t, "not json at all", perr.Raw)
	assert.NotNil(t, errors.Unwrap(perr))
}

func TestRecords_WrongShape(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"top level object", `{"produto":"Arroz"}`},
		{"array of scalars", `[1,2,3]`},
		{"array with non-object element", `[{"a":1}, "b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Records(tt.raw)

			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, KindUnexpectedShape, perr.Kind)
			assert.Equal(t, tt.raw, perr.Raw)
		})
	}
}

func TestRecords_EmptyArray(t *testing.T) {
	records, err := Records("[]")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCleanLink(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain url", "https://sefaz.example/nfce?p=123", "https://sefaz.example/nfce?p=123"},
		{"fenced url", "```\nhttps://sefaz.example/nfce\n```", "https://sefaz.example/nfce"},
		{"url with trailing chatter", "https://sefaz.example/nfce\nThis is the link found.", "https://sefaz.example/nfce"},
		{"padded url", "  https://sefaz.example/nfce  ", "https://sefaz.example/nfce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanLink(tt.input))
		})
	}
}
