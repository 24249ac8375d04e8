package record

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// Line is the single-line text form of a delivered batch:
//
//	<release> <attempts> <base64(zlib(payload))>
//
// Attempts is the number of records the request tried to buffer, which may
// exceed the number carried in the payload when the buffer overflowed.
type Line struct {
	Release  string
	Attempts int
	Payload  []byte
}

// EncodeLine renders l. Release must not contain whitespace; an empty release
// is written as "-".
func EncodeLine(l Line) (string, error) {
	release := l.Release
	if release == "" {
		release = "-"
	}
	if strings.ContainsAny(release, " \t\r\n") {
		return "", fmt.Errorf("record: release %q contains whitespace", release)
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(l.Payload); err != nil {
		return "", fmt.Errorf("record: compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("record: compress payload: %w", err)
	}

	return release + " " + strconv.Itoa(l.Attempts) + " " +
		base64.StdEncoding.EncodeToString(compressed.Bytes()), nil
}

// DecodeLine parses a line produced by EncodeLine.
func DecodeLine(s string) (Line, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return Line{}, fmt.Errorf("record: expected 3 fields, got %d", len(fields))
	}

	attempts, err := strconv.Atoi(fields[1])
	if err != nil {
		return Line{}, fmt.Errorf("record: invalid attempts %q: %w", fields[1], err)
	}

	compressed, err := base64.StdEncoding.DecodeString(fields[2])
	if err != nil {
		return Line{}, fmt.Errorf("record: invalid base64 payload: %w", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return Line{}, fmt.Errorf("record: invalid zlib payload: %w", err)
	}
	defer zr.Close()
	payload, err := io.ReadAll(zr)
	if err != nil {
		return Line{}, fmt.Errorf("record: inflate payload: %w", err)
	}

	release := fields[0]
	if release == "-" {
		release = ""
	}
	return Line{Release: release, Attempts: attempts, Payload: payload}, nil
}

// Records decodes the line's payload.
func (l Line) Records() ([]LogRecord, error) {
	return DecodeBatch(l.Payload)
}
