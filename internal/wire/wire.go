package wire

import (
	"errors"
	"strings"
)

// ErrUnterminated reports a buffer with no double-nul terminator inside the
// supplied view.
var ErrUnterminated = errors.New("wire: buffer not double-nul terminated")

// ErrOffset reports a decode offset outside the supplied view.
var ErrOffset = errors.New("wire: offset outside buffer")

// Terminator ends every encoded buffer.
const Terminator = "\x00\x00"

// Encode converts a command line into its wire form.
//
// Unquoted spaces become nul separators, quote characters (' and ") are
// dropped, and spaces inside an open quote pass through. A quote matching the
// open one closes the span; the other kind reopens it under that kind, so
// `"it's on" x` stays one span until the end. Unbalanced quoting leaves the
// span open until the end of the input. The result is at most len(command)+2 bytes long.
func Encode(command string) []byte {
	buf := make([]byte, 0, len(command)+2)

	var quote byte
	for i := 0; i < len(command); i++ {
		c := command[i]
		if c == '"' || c == '\'' {
			if c == quote {
				quote = 0
			} else {
				quote = c
			}
			continue
		}
		if c == ' ' && quote == 0 {
			c = 0
		}
		buf = append(buf, c)
	}

	// A trailing unquoted space already left one nul behind.
	if n := len(buf); n > 0 && buf[n-1] == 0 {
		buf = buf[:n-1]
	}
	return append(buf, 0, 0)
}

// Join builds a wire buffer from tokens that are already split. Tokens are
// copied verbatim, so callers must not pass tokens containing nul bytes.
func Join(tokens ...string) []byte {
	size := 2
	for _, token := range tokens {
		size += len(token) + 1
	}
	buf := make([]byte, 0, size)
	for i, token := range tokens {
		if i > 0 {
			buf = append(buf, 0)
		}
		buf = append(buf, token...)
	}
	return append(buf, 0, 0)
}

// Decode renders buf[offset:] up to the first double-nul terminator, turning
// every single nul into a line break. When no terminator exists inside buf the
// text read so far is returned together with ErrUnterminated.
func Decode(buf []byte, offset int) (string, error) {
	if offset < 0 || offset > len(buf) {
		return "", ErrOffset
	}

	var b strings.Builder
	b.Grow(len(buf) - offset)
	for i := offset; i < len(buf); i++ {
		c := buf[i]
		if c != 0 {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(buf) {
			break
		}
		if buf[i+1] == 0 {
			return b.String(), nil
		}
		b.WriteByte('\n')
	}
	return b.String(), ErrUnterminated
}

// Tokens splits a terminated buffer into its nul-separated tokens. An empty
// sequence (a bare terminator) yields no tokens.
func Tokens(buf []byte) ([]string, error) {
	var tokens []string
	start := 0
	for i := 0; i < len(buf); i++ {
		if buf[i] != 0 {
			continue
		}
		if i+1 < len(buf) && buf[i+1] == 0 {
			if i > start || len(tokens) > 0 {
				tokens = append(tokens, string(buf[start:i]))
			}
			return tokens, nil
		}
		tokens = append(tokens, string(buf[start:i]))
		start = i + 1
	}
	return tokens, ErrUnterminated
}
