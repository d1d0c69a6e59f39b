package plantuml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDeterministic(t *testing.T) {
	const text = "@startuml\nAlice -> Bob: hello\n@enduml"
	a, err := Encode(text)
	require.NoError(t, err)
	b, err := Encode(text)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncodeEmpty(t *testing.T) {
	// Go's deflate closes an empty stream with the stored final block
	// 01 00 00 ff ff, which packs into exactly these two groups.
	got, err := Encode("")
	require.NoError(t, err)
	assert.Equal(t, "0G00__y0", got)

	dec, err := Decode(got)
	require.NoError(t, err)
	assert.Empty(t, dec)
}

func TestEncodeOutputShape(t *testing.T) {
	inputs := []string{
		"",
		"@startuml\n@enduml",
		"@startuml\nAlice -> Bob: Authentication Request\nBob --> Alice: Authentication Response\n@enduml",
		strings.Repeat("participant Service\n", 40),
	}
	for _, in := range inputs {
		enc, err := Encode(in)
		require.NoError(t, err)
		assert.NotEmpty(t, enc)
		assert.Zero(t, len(enc)%4, "length must be a multiple of 4 for %q", in)
		for i := 0; i < len(enc); i++ {
			assert.GreaterOrEqual(t, strings.IndexByte(alphabet, enc[i]), 0,
				"symbol %q outside alphabet", enc[i])
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"@startuml\n@enduml",
		"@startuml\ntitle Retail ELT\ndatabase S3\nfile CSV\nCSV -> S3: parquet\n@enduml",
		strings.Repeat("a", 1000),
	}
	for _, in := range inputs {
		enc, err := Encode(in)
		require.NoError(t, err)
		dec, err := Decode(enc)
		require.NoError(t, err)
		assert.Equal(t, in, dec)
	}
}

func TestEncode64KnownGroups(t *testing.T) {
	// Hand-computed against the alphabet.
	assert.Equal(t, "0G83", encode64([]byte{1, 2, 3}))
	assert.Equal(t, "0m00", encode64([]byte{0x03, 0x00}))
	assert.Equal(t, "", encode64(nil))
}

func TestEncode64PaddingBoundary(t *testing.T) {
	// 3n, 3n+1 and 3n+2 byte inputs all produce whole groups.
	for n := 1; n <= 6; n++ {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(0x10 + i)
		}
		enc := encode64(data)
		want := (n + 2) / 3 * 4
		assert.Len(t, enc, want, "n=%d", n)

		raw, err := decode64(enc)
		require.NoError(t, err)
		// decoded bytes are the input plus zero padding to the group size
		require.GreaterOrEqual(t, len(raw), n)
		assert.Equal(t, data, raw[:n])
		for _, b := range raw[n:] {
			assert.Zero(t, b)
		}
	}
}

func TestDecode64Rejects(t *testing.T) {
	_, err := decode64("abc")
	assert.Error(t, err)
	_, err = decode64("ab!=")
	assert.Error(t, err)
}
