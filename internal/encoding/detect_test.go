package encoding_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/tesouraria/internal/encoding"
)

func TestDetect(t *testing.T) {
	type testCase struct {
		name        string
		input       []byte
		wantCharset encoding.Charset
		want        string
	}

	header := "Data;Conceito;Entradas;Saídas;Saldo\n"

	tests := []testCase{
		{
			name:        "UTF8Passthrough",
			input:       []byte(header + "05/09/2025;Quotas setembro;200,00;;1200,00\n"),
			wantCharset: encoding.UTF8,
			want:        header + "05/09/2025;Quotas setembro;200,00;;1200,00\n",
		},
		{
			name:        "UTF8BOMStripped",
			input:       append([]byte{0xEF, 0xBB, 0xBF}, header...),
			wantCharset: encoding.UTF8,
			want:        header,
		},
		{
			name: "Latin1",
			// "Saídas;Operação\n" with í = 0xED, ç = 0xE7, ã = 0xE3
			input: []byte{
				'S', 'a', 0xED, 'd', 'a', 's', ';',
				'O', 'p', 'e', 'r', 'a', 0xE7, 0xE3, 'o', '\n',
			},
			want: "Saídas;Operação\n",
		},
		{
			name:        "UTF16LE",
			input:       []byte{0xFF, 0xFE, 'D', 0, 'a', 0, 't', 0, 'a', 0, ';', 0, 0xED, 0, '\n', 0},
			wantCharset: encoding.UTF16LE,
			want:        "Data;í\n",
		},
		{
			name:        "UTF16BE",
			input:       []byte{0xFE, 0xFF, 0, 'S', 0, 'a', 0, 0xED, 0, '\n'},
			wantCharset: encoding.UTF16BE,
			want:        "Saí\n",
		},
		{
			name:        "Empty",
			input:       nil,
			wantCharset: encoding.UTF8,
			want:        "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			charset, r, err := encoding.Detect(bytes.NewReader(tt.input))
			require.NoError(t, err)
			if tt.wantCharset != "" {
				assert.Equal(t, tt.wantCharset, charset)
			} else {
				assert.NotEqual(t, encoding.UTF8, charset)
			}

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDetect_RuneSplitAtSniffBoundary(t *testing.T) {
	// 4095 ASCII bytes followed by "é" puts its second byte past the window.
	input := strings.Repeat("a", 4095) + "é;fim\n"

	charset, r, err := encoding.Detect(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, encoding.UTF8, charset)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, input, string(got))
}

func TestNewUTF8Reader(t *testing.T) {
	r, err := encoding.NewUTF8Reader(bytes.NewReader([]byte{'C', 'a', 'f', 0xE9, '\n'}))
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "Café\n", string(got))
}
