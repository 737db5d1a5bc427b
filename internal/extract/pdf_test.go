package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodePDFString(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"escaped parens", `a \(b\) c`, "a (b) c"},
		{"escaped backslash", `a\\b`, `a\b`},
		{"newline and tab", `a\nb\tc`, "a\nb\tc"},
		{"octal three digits", `\101\102\103`, "ABC"},
		{"octal short", `\12x`, "\nx"},
		{"unknown escape passes through", `a\qb`, "aqb"},
		{"trailing backslash kept", `ab\`, `ab\`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodePDFString([]byte(tt.raw)))
		})
	}
}

func TestTextFromContentStream(t *testing.T) {
	stream := []byte("BT\n" +
		"/F1 12 Tf\n" +
		"(The project installed) Tj\n" +
		"1 0 0 1 50 700 Td\n" +
		"(500 cookstoves.) Tj\n" +
		"T*\n" +
		"(Households benefited.) Tj\n" +
		"[(Emission) (s fell)] TJ\n" +
		"(Next line) '\n" +
		"ET\n")

	got := textFromContentStream(stream)
	assert.Contains(t, got, "The project installed 500 cookstoves.")
	assert.Contains(t, got, "Households benefited.")
	assert.Contains(t, got, "Emissions fell")
	assert.Contains(t, got, "Next line")
}

func TestNormalizePDFText(t *testing.T) {
	assert.Equal(t, "a b \nc", normalizePDFText("a   b \n\n c"))
	assert.Equal(t, "", normalizePDFText("\n  \t "))
	assert.Equal(t, "ab", normalizePDFText("a\x00b"))
}
