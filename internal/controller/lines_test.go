package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeLines_LineEndingConventions(t *testing.T) {
	want := []string{"Cobolt", "08-NLD", "ready"}

	inputs := map[string]string{
		"lf":   "Cobolt\n08-NLD\nready\n",
		"cr":   "Cobolt\r08-NLD\rready\r",
		"crlf": "Cobolt\r\n08-NLD\r\nready\r\n",
		"lfcr": "Cobolt\n\r08-NLD\n\rready\n\r",
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, DecodeLines(input, true))
		})
	}
}

func TestDecodeLines_Strip(t *testing.T) {
	tests := []struct {
		name  string
		input string
		strip bool
		want  []string
	}{
		{"leading and trailing stripped", "\nOK\n", true, []string{"OK"}},
		{"leading and trailing kept", "\nOK\n", false, []string{"", "OK", ""}},
		{"only one trailing removed", "OK\n\n", true, []string{"OK", ""}},
		{"only one leading removed", "\n\nOK", true, []string{"", "OK"}},
		{"inner empty line kept", "a\r\n\r\nb\r\n", true, []string{"a", "", "b"}},
		{"empty stripped", "", true, []string{}},
		{"empty kept", "", false, []string{""}},
		{"lone terminator stripped", "\r\n", true, []string{}},
		{"no terminator", "0.115", true, []string{"0.115"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeLines(tt.input, tt.strip))
		})
	}
}

func TestDecodeLines_LFCRFirst(t *testing.T) {
	// \r\n\r reduces to one break because \n\r is replaced first
	assert.Equal(t, []string{"a", "b"}, DecodeLines("a\r\n\rb", true))
}
