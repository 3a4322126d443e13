// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"
)

func TestParseCompressionTag(t *testing.T) {
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		parsed, err := ParseCompressionTag(tag.String())
		if err != nil {
			t.Fatalf("ParseCompressionTag(%q): %v", tag, err)
		}
		if parsed != tag {
			t.Errorf("ParseCompressionTag(%q) = %v", tag, parsed)
		}
	}
	if _, err := ParseCompressionTag("gzip"); err == nil {
		t.Error("ParseCompressionTag(gzip) succeeded")
	}
	if got := CompressionTag(42).String(); got != "unknown(42)" {
		t.Errorf("String() = %q", got)
	}
}

func TestCompressPayloadThreshold(t *testing.T) {
	data := []byte(strings.Repeat("a", 100))
	stored, tag, err := compressPayload(data, CompressionZstd, 101)
	if err != nil {
		t.Fatal(err)
	}
	if tag != CompressionNone || !bytes.Equal(stored, data) {
		t.Errorf("payload under threshold: tag = %v", tag)
	}

	stored, tag, err = compressPayload(data, CompressionZstd, 100)
	if err != nil {
		t.Fatal(err)
	}
	if tag != CompressionZstd || len(stored) >= len(data) {
		t.Errorf("payload at threshold: tag = %v, %d bytes", tag, len(stored))
	}
}

func TestCompressPayloadIncompressibleStoredRaw(t *testing.T) {
	data := make([]byte, 4096)
	if _, err := rand.Read(data); err != nil {
		t.Fatal(err)
	}
	for _, tag := range []CompressionTag{CompressionLZ4, CompressionZstd} {
		stored, applied, err := compressPayload(data, tag, 1)
		if err != nil {
			t.Fatalf("%v: %v", tag, err)
		}
		if applied != CompressionNone || !bytes.Equal(stored, data) {
			t.Errorf("%v: random data stored with tag %v", tag, applied)
		}
	}
}

func TestDecompressPayloadSizeMismatch(t *testing.T) {
	data := []byte(strings.Repeat("weather ", 64))
	for _, tag := range []CompressionTag{CompressionLZ4, CompressionZstd} {
		stored, applied, err := compressPayload(data, tag, 1)
		if err != nil || applied != tag {
			t.Fatalf("%v: compress = %v, %v", tag, applied, err)
		}
		if _, err := decompressPayload(stored, tag, len(data)+1); err == nil {
			t.Errorf("%v: size mismatch not detected", tag)
		}
		roundtrip, err := decompressPayload(stored, tag, len(data))
		if err != nil {
			t.Fatalf("%v: %v", tag, err)
		}
		if !bytes.Equal(roundtrip, data) {
			t.Errorf("%v: roundtrip mismatch", tag)
		}
	}
}
