package transport

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/anortham/coa-mcp-framework-sub002/pkg/errors"
)

var (
	crlfTerminator = []byte("\r\n\r\n")
	lfTerminator   = []byte("\n\n")
	utf8BOM        = []byte{0xEF, 0xBB, 0xBF}
)

// FrameReader decodes discrete messages from a byte stream. Two framings
// coexist: a Content-Length header block followed by exactly that many
// body bytes, and a raw-line fallback for payloads whose first
// non-whitespace byte is '{' or '['.
type FrameReader struct {
	r       *bufio.Reader
	maxSize int64
}

// NewFrameReader wraps r. maxSize bounds a single frame's declared body
// length; zero or negative means unbounded.
func NewFrameReader(r io.Reader, maxSize int64) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r), maxSize: maxSize}
}

// ReadFrame returns the next complete payload. It returns io.EOF when the
// stream is exhausted with no partial data; a partial header block at
// end-of-stream is decoded best-effort instead of erroring.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	var buf bytes.Buffer

	for {
		b, err := fr.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return fr.finishAtEOF(buf.Bytes())
			}
			return nil, err
		}
		buf.WriteByte(b)

		// Raw-line mode: a JSON payload with no header block.
		if trimmed := bytes.TrimLeft(buf.Bytes(), " \t\r\n"); len(trimmed) > 0 {
			if trimmed[0] == '{' || trimmed[0] == '[' {
				return fr.readLine(trimmed)
			}
		}

		data := buf.Bytes()
		if bytes.HasSuffix(data, crlfTerminator) || bytes.HasSuffix(data, lfTerminator) {
			return fr.readBody(data)
		}
	}
}

// readLine completes raw-line mode: everything up to the next newline is
// the message. prefix holds the bytes already consumed.
func (fr *FrameReader) readLine(prefix []byte) ([]byte, error) {
	if i := bytes.IndexByte(prefix, '\n'); i >= 0 {
		return normalizePayload(prefix[:i]), nil
	}
	rest, err := fr.r.ReadBytes('\n')
	line := append(append([]byte(nil), prefix...), rest...)
	if err != nil && err != io.EOF {
		return nil, err
	}
	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 && err == io.EOF {
		return nil, io.EOF
	}
	return normalizePayload(line), nil
}

// readBody parses the header block in data and reads the declared body.
// Bytes already consumed past the terminator count toward the body. A
// header block with no parseable Content-Length yields the buffered
// bytes as the message rather than an error.
func (fr *FrameReader) readBody(data []byte) ([]byte, error) {
	header, remainder := splitHeaderBlock(data)

	length, ok := parseContentLength(header)
	if !ok {
		return normalizePayload(bytes.TrimSpace(data)), nil
	}
	if fr.maxSize > 0 && length > fr.maxSize {
		return nil, errors.MessageTooLarge(length, fr.maxSize)
	}

	body := make([]byte, length)
	copied := copy(body, remainder)
	if int64(copied) < length {
		if _, err := io.ReadFull(fr.r, body[copied:]); err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				// Short frame at end-of-stream: best-effort decode.
				return normalizePayload(body[:copied]), nil
			}
			return nil, errors.FrameError("reading frame body", err)
		}
	}
	return normalizePayload(body), nil
}

// finishAtEOF handles end-of-stream: clean EOF when nothing buffered,
// best-effort decode of whatever partial data remains otherwise.
func (fr *FrameReader) finishAtEOF(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, io.EOF
	}
	if header, remainder := splitHeaderBlock(trimmed); header != nil {
		if _, ok := parseContentLength(header); ok {
			return normalizePayload(remainder), nil
		}
	}
	return normalizePayload(trimmed), nil
}

// splitHeaderBlock splits data at the first header terminator. The header
// return is nil when no terminator is present.
func splitHeaderBlock(data []byte) (header, remainder []byte) {
	if i := bytes.Index(data, crlfTerminator); i >= 0 {
		return data[:i], data[i+len(crlfTerminator):]
	}
	if i := bytes.Index(data, lfTerminator); i >= 0 {
		return data[:i], data[i+len(lfTerminator):]
	}
	return nil, data
}

// parseContentLength scans a header block for Content-Length,
// case-insensitively.
func parseContentLength(header []byte) (int64, bool) {
	for _, line := range strings.Split(string(header), "\n") {
		name, value, found := strings.Cut(strings.TrimRight(line, "\r"), ":")
		if !found {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// normalizePayload strips a UTF-8 byte-order mark if present.
func normalizePayload(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}

// FrameWriter emits Content-Length framed payloads. All writes share one
// lock so concurrent senders cannot interleave frames.
type FrameWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewFrameWriter wraps w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: bufio.NewWriter(w)}
}

// WriteFrame emits one framed payload and flushes.
func (fw *FrameWriter) WriteFrame(payload []byte) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, err := fmt.Fprintf(fw.w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return errors.FrameError("writing frame header", err)
	}
	if _, err := fw.w.Write(payload); err != nil {
		return errors.FrameError("writing frame body", err)
	}
	if err := fw.w.Flush(); err != nil {
		return errors.FrameError("flushing frame", err)
	}
	return nil
}
