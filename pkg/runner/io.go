package runner

import (
	"bufio"
	"context"
	"io"
	"sync"
)

// lineReader reads lines on a background goroutine so a read can be abandoned
// when its context ends. The goroutine stays parked on the reader until the next line.
type lineReader struct {
	reader *bufio.Reader
	lines  chan lineResult
	once   sync.Once
}

type lineResult struct {
	text string
	err  error
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{reader: bufio.NewReader(r)}
}

func (l *lineReader) pump() {
	for {
		text, err := l.reader.ReadString('\n')
		if text != "" {
			l.lines <- lineResult{text: text}
		}
		if err != nil {
			l.lines <- lineResult{err: err}
			close(l.lines)
			return
		}
	}
}

// ReadLine returns the next line, without its terminator.
func (l *lineReader) ReadLine(ctx context.Context) (string, error) {
	l.once.Do(func() {
		l.lines = make(chan lineResult)
		go l.pump()
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-l.lines:
		if !ok {
			return "", io.EOF
		}
		if res.err != nil {
			return "", res.err
		}
		return trimEOL(res.text), nil
	}
}

func trimEOL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
