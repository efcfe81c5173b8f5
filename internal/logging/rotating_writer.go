package logging

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotatingFileWriter appends JSON log records to a file, rotating it before
// a write would take it past a size threshold and pruning rotations beyond a retained
// count. The rotation mechanics themselves are lumberjack's — a crawl's
// log volume is proportional to pages fetched, not a domain concern worth
// a hand-rolled backup-numbering scheme.
type RotatingFileWriter struct {
	*lumberjack.Logger
}

// NewRotatingFileWriter returns a writer over filePath that rotates the
// file before a write that would take it past maxSizeMB megabytes, keeping at most maxBackups rotated
// copies alongside the live one. The file itself is created lazily on the
// first Write, matching lumberjack's own behavior, so a crawl that never
// logs anything to disk never touches the filesystem for it.
func NewRotatingFileWriter(filePath string, maxSizeMB int64, maxBackups int) *RotatingFileWriter {
	return &RotatingFileWriter{Logger: &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    int(maxSizeMB),
		MaxBackups: maxBackups,
	}}
}

var _ io.WriteCloser = (*RotatingFileWriter)(nil)
