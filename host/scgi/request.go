package scgi

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/watt-toolkit/fuse/env"
)

// Errors returned for malformed SCGI requests.
var (
	ErrMalformedHeader = errors.New("scgi: malformed header block")
	ErrHeaderTooLarge  = errors.New("scgi: header block too large")
	ErrNotSCGI         = errors.New("scgi: missing SCGI=1 header")
	ErrNoContentLength = errors.New("scgi: first header is not CONTENT_LENGTH")
)

// maxLengthDigits bounds the netstring length prefix.
const maxLengthDigits = 10

// ReadHeaders reads the netstring-framed header block
// ("<len>:NAME\x00VALUE\x00...,") from r and returns the variables.
// The request body is whatever follows on r.
func ReadHeaders(r *bufio.Reader, maxBytes int) (map[string]string, error) {
	n, err := readLength(r)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 && n > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, n)
	}

	block := make([]byte, n+1)
	if _, err := io.ReadFull(r, block); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if block[n] != ',' {
		return nil, fmt.Errorf("%w: missing trailing comma", ErrMalformedHeader)
	}
	return parseHeaders(block[:n])
}

func readLength(r *bufio.Reader) (int, error) {
	n, digits := 0, 0
	for {
		b, err := r.ReadByte()
		if err != nil {
			if digits == 0 {
				return 0, err
			}
			return 0, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
		}
		if b == ':' {
			break
		}
		if b < '0' || b > '9' || digits == maxLengthDigits {
			return 0, fmt.Errorf("%w: bad length prefix", ErrMalformedHeader)
		}
		n = n*10 + int(b-'0')
		digits++
	}
	if digits == 0 {
		return 0, fmt.Errorf("%w: empty length prefix", ErrMalformedHeader)
	}
	return n, nil
}

func parseHeaders(block []byte) (map[string]string, error) {
	if len(block) == 0 || block[len(block)-1] != 0 {
		return nil, fmt.Errorf("%w: unterminated header", ErrMalformedHeader)
	}
	fields := bytes.Split(block[:len(block)-1], []byte{0})
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("%w: header without value", ErrMalformedHeader)
	}

	headers := make(map[string]string, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		name := string(fields[i])
		if name == "" {
			return nil, fmt.Errorf("%w: empty header name", ErrMalformedHeader)
		}
		if _, dup := headers[name]; dup {
			return nil, fmt.Errorf("%w: duplicate header %s", ErrMalformedHeader, name)
		}
		headers[name] = string(fields[i+1])
	}

	if string(fields[0]) != env.ContentLength {
		return nil, ErrNoContentLength
	}
	if _, err := strconv.ParseUint(headers[env.ContentLength], 10, 63); err != nil {
		return nil, fmt.Errorf("%w: bad CONTENT_LENGTH %q", ErrMalformedHeader, headers[env.ContentLength])
	}
	if headers["SCGI"] != "1" {
		return nil, ErrNotSCGI
	}
	return headers, nil
}
