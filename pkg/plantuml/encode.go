// Package plantuml encodes diagram text for the PlantUML server URL scheme
// and fetches rendered images.
//
// The scheme deflates the text, strips the RFC1950 zlib wrapper, and packs
// the raw stream through a base64-like alphabet safe for URL path segments.
package plantuml

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"fmt"
	"io"
	"strings"
)

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

// Encode compresses text with zlib at default settings and encodes the raw
// deflate stream (wrapper header and Adler-32 trailer removed) with the
// PlantUML 64-symbol alphabet. The mapping is pure and deterministic; the
// output length is always 4*ceil(k/3) characters for k stripped bytes.
func Encode(text string) (string, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write([]byte(text)); err != nil {
		return "", fmt.Errorf("plantuml: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("plantuml: compress: %w", err)
	}
	wrapped := buf.Bytes()
	// 2-byte CMF/FLG header, 4-byte Adler-32 trailer; the server expects
	// the raw deflate stream in between.
	raw := wrapped[2 : len(wrapped)-4]
	return encode64(raw), nil
}

// Decode is the inverse of Encode: alphabet symbols back to bytes, then raw
// deflate inflation. Zero padding after the final block is ignored.
func Decode(encoded string) (string, error) {
	raw, err := decode64(encoded)
	if err != nil {
		return "", err
	}
	fr := flate.NewReader(bytes.NewReader(raw))
	defer func() { _ = fr.Close() }()
	text, err := io.ReadAll(fr)
	if err != nil {
		return "", fmt.Errorf("plantuml: inflate: %w", err)
	}
	return string(text), nil
}

func encode64(data []byte) string {
	var b strings.Builder
	b.Grow((len(data) + 2) / 3 * 4)
	for i := 0; i < len(data); i += 3 {
		var b2, b3 byte
		if i+1 < len(data) {
			b2 = data[i+1]
		}
		if i+2 < len(data) {
			b3 = data[i+2]
		}
		append3bytes(&b, data[i], b2, b3)
	}
	return b.String()
}

func append3bytes(b *strings.Builder, b1, b2, b3 byte) {
	c1 := b1 >> 2
	c2 := ((b1 & 0x3) << 4) | (b2 >> 4)
	c3 := ((b2 & 0xF) << 2) | (b3 >> 6)
	c4 := b3 & 0x3F
	b.WriteByte(alphabet[c1&0x3F])
	b.WriteByte(alphabet[c2&0x3F])
	b.WriteByte(alphabet[c3&0x3F])
	b.WriteByte(alphabet[c4&0x3F])
}

func decode64(s string) ([]byte, error) {
	if len(s)%4 != 0 {
		return nil, fmt.Errorf("plantuml: encoded length %d is not a multiple of 4", len(s))
	}
	out := make([]byte, 0, len(s)/4*3)
	for i := 0; i < len(s); i += 4 {
		var c [4]byte
		for j := 0; j < 4; j++ {
			idx := strings.IndexByte(alphabet, s[i+j])
			if idx < 0 {
				return nil, fmt.Errorf("plantuml: invalid symbol %q at offset %d", s[i+j], i+j)
			}
			c[j] = byte(idx)
		}
		out = append(out, c[0]<<2|c[1]>>4, c[1]<<4|c[2]>>2, c[2]<<6|c[3])
	}
	return out, nil
}
