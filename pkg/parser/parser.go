package parser

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// maxLineSize bounds a single trace line. Longer lines are truncated.
const maxLineSize = 1024 * 1024

// FileSource implements LineSource for reading from trace files.
type FileSource struct {
	files []string

	current        io.ReadCloser
	currentScanner *bufio.Scanner
	currentSource  string
	currentLine    int
	fileIndex      int
}

// NewFileSource creates a LineSource that reads from the given files in order.
func NewFileSource(files []string) *FileSource {
	return &FileSource{
		files:     files,
		fileIndex: -1,
	}
}

// Next returns the next raw line.
// Returns io.EOF when all files have been exhausted.
func (s *FileSource) Next(ctx context.Context) (*LogLine, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if s.currentScanner == nil {
			if err := s.openNextFile(); err != nil {
				return nil, err
			}
		}

		if s.currentScanner.Scan() {
			s.currentLine++
			return &LogLine{
				Content: cleanLine(s.currentScanner.Text()),
				Source:  s.currentSource,
				LineNum: s.currentLine,
			}, nil
		}

		if err := s.currentScanner.Err(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.currentSource, err)
		}

		if err := s.closeCurrentFile(); err != nil {
			return nil, err
		}
	}
}

// Source returns the path of the file currently being read.
func (s *FileSource) Source() string {
	return s.currentSource
}

// Close releases resources.
func (s *FileSource) Close() error {
	return s.closeCurrentFile()
}

func (s *FileSource) openNextFile() error {
	s.fileIndex++
	if s.fileIndex >= len(s.files) {
		return io.EOF
	}

	path := s.files[s.fileIndex]
	rc, err := OpenTrace(path)
	if err != nil {
		return err
	}

	s.current = rc
	s.currentScanner = newScanner(rc)
	s.currentSource = path
	s.currentLine = 0

	return nil
}

func (s *FileSource) closeCurrentFile() error {
	if s.current != nil {
		err := s.current.Close()
		s.current = nil
		s.currentScanner = nil
		return err
	}
	return nil
}

// FileReader reads whole trace files into memory for a pipeline run.
type FileReader struct {
	logger zerolog.Logger
}

// FileReaderOption configures a FileReader.
type FileReaderOption func(*FileReader)

// WithLogger sets the logger used for skipped-file warnings.
func WithLogger(logger zerolog.Logger) FileReaderOption {
	return func(r *FileReader) {
		r.logger = logger
	}
}

// NewFileReader creates a FileReader.
func NewFileReader(opts ...FileReaderOption) *FileReader {
	r := &FileReader{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadLines reads every file in order and returns the concatenated lines
// and the number of files that contributed lines. Unreadable files are
// logged and skipped; a file that fails midway contributes nothing.
func (r *FileReader) ReadLines(ctx context.Context, paths []string) ([]string, int) {
	var lines []string
	filesRead := 0

	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}

		fileLines, err := readFile(path)
		if err != nil {
			r.logger.Warn().Err(err).Str("file", path).Msg("skipping unreadable trace file")
			continue
		}
		if len(fileLines) == 0 {
			r.logger.Warn().Str("file", path).Msg("trace file is empty")
			continue
		}

		r.logger.Debug().Str("file", path).Int("lines", len(fileLines)).Msg("read trace file")
		lines = append(lines, fileLines...)
		filesRead++
	}

	return lines, filesRead
}

func readFile(path string) ([]string, error) {
	rc, err := OpenTrace(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var lines []string
	scanner := newScanner(rc)
	for scanner.Scan() {
		lines = append(lines, cleanLine(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return lines, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(truncatingLines(maxLineSize))
	return scanner
}

// truncatingLines splits like bufio.ScanLines but keeps only the first limit
// bytes of a longer line and drops the rest of it.
func truncatingLines(limit int) bufio.SplitFunc {
	discarding := false
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			if discarding {
				discarding = false
				return i + 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
		if len(data) >= limit {
			if discarding {
				return len(data), nil, nil
			}
			discarding = true
			return len(data), data[:limit], nil
		}
		if atEOF {
			if discarding {
				discarding = false
				return len(data), nil, nil
			}
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

// cleanLine drops bytes that are not valid UTF-8 and a trailing CR.
func cleanLine(line string) string {
	return strings.ToValidUTF8(strings.TrimSuffix(line, "\r"), "")
}
