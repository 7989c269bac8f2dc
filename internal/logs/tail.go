package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	defaultPollInterval = 250 * time.Millisecond
	maxLineBytes        = 1024 * 1024
)

// TailResult holds lines read and the offset after the last full line.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail returns the last limit lines of path. A missing file yields no lines
// and offset 0. A limit <= 0 only reports the end offset.
func Tail(path string, limit int) (TailResult, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return TailResult{}, err
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return TailResult{}, fmt.Errorf("seek log file: %w", err)
		}
		return TailResult{Offset: end}, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	offset, err := scanLines(file, func(line string) {
		ring[next] = line
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return TailResult{}, err
	}

	lines := make([]string, 0, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := 0; i < count; i++ {
		lines = append(lines, ring[(start+i)%limit])
	}
	return TailResult{Lines: lines, Offset: offset}, nil
}

// ReadFrom returns the complete lines written after offset. When the file is
// now shorter than offset it was rotated, and reading restarts at zero.
func ReadFrom(path string, offset int64) (TailResult, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return TailResult{}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	read, err := scanLines(file, func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		return TailResult{Offset: offset}, err
	}
	return TailResult{Lines: lines, Offset: offset + read}, nil
}

// Follow polls path from offset and hands each batch of new lines to emit
// until ctx ends or emit fails. A zero interval uses the default.
func Follow(ctx context.Context, path string, offset int64, interval time.Duration, emit func([]string) error) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := ReadFrom(path, offset)
		if err != nil {
			return err
		}
		offset = result.Offset
		if len(result.Lines) > 0 {
			if err := emit(result.Lines); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func openLog(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}

// scanLines feeds complete lines to fn and returns how many bytes they
// covered. A trailing partial line is left for the next read.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			consumed += int64(len(line))
			text := line[:len(line)-1]
			if len(text) > maxLineBytes {
				text = text[:maxLineBytes]
			}
			fn(text)
			continue
		}
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		return consumed, fmt.Errorf("read log file: %w", err)
	}
}
