package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"kpiwatch/collector"
)

// CSV appends records to a local spreadsheet-style file.
type CSV struct {
	path string
	log  *zap.Logger
	mu   sync.Mutex
}

func NewCSV(path string, log *zap.Logger) *CSV {
	return &CSV{path: path, log: log}
}

// Append writes rec as one line, preceded by the header when the file is
// new or empty.
func (c *CSV) Append(_ context.Context, rec Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create csv dir: %w", err)
		}
	}
	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv %s: %w", c.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat csv %s: %w", c.path, err)
	}
	if err := writeRow(f, rec, info.Size() == 0); err != nil {
		return fmt.Errorf("write csv %s: %w", c.path, err)
	}
	c.log.Debug("record appended to csv", zap.String("path", c.path), zap.String("day", rec.Day()))
	return nil
}

func writeRow(w io.Writer, rec Record, header bool) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(collector.Columns); err != nil {
			return err
		}
	}
	if err := cw.Write(rec.Strings()); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
