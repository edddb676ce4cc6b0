package analyzer

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// frameDecoder reassembles Content-Length framed JSON-RPC messages from an
// arbitrarily chunked byte stream. It is an explicit accumulate/scan/extract
// state machine: bytes go in through Append, complete payloads come out of
// Next, and partial input simply waits for more bytes.
type frameDecoder struct {
	buf []byte
}

var headerTerminator = []byte("\r\n\r\n")

func (d *frameDecoder) Append(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next extracts one complete payload. It returns (nil, nil) when the buffer
// does not yet hold a full frame. A malformed header block is dropped and
// reported as an error so the caller can log and resynchronize on the next
// frame.
func (d *frameDecoder) Next() ([]byte, error) {
	end := bytes.Index(d.buf, headerTerminator)
	if end < 0 {
		return nil, nil
	}
	header := string(d.buf[:end])
	contentLength := -1
	for _, line := range strings.Split(header, "\r\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			length, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				d.buf = d.buf[end+len(headerTerminator):]
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
			contentLength = length
		}
	}
	if contentLength < 0 {
		d.buf = d.buf[end+len(headerTerminator):]
		return nil, fmt.Errorf("missing Content-Length header")
	}
	bodyStart := end + len(headerTerminator)
	if len(d.buf) < bodyStart+contentLength {
		return nil, nil
	}
	payload := make([]byte, contentLength)
	copy(payload, d.buf[bodyStart:bodyStart+contentLength])
	d.buf = d.buf[bodyStart+contentLength:]
	return payload, nil
}

// writeFrame encodes one payload onto the wire.
func writeFrame(w io.Writer, payload []byte) error {
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(payload))
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
