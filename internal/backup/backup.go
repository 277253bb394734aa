// Package backup produces point-in-time snapshot exports of the dataset as
// timestamped Excel workbooks. The datastore's own durability is out of
// scope; these exports are what a shop owner carries off-site.
package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Table is one snapshot sheet.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Source yields a consistent snapshot of the dataset. Implementations read
// inside a single read-only transaction so an in-flight document write is
// either fully present or fully absent.
type Source interface {
	Snapshot(ctx context.Context) ([]Table, error)
}

// File describes one stored backup.
type File struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrNotFound indicates a missing backup file.
var ErrNotFound = errors.New("backup: file not found")

const filePrefix = "backup_"

// Service writes, lists and prunes backup workbooks in one directory.
type Service struct {
	source    Source
	dir       string
	retention int
	logger    *slog.Logger
}

// NewService builds a Service. Retention is the number of newest backups to
// keep; values below 1 fall back to 10.
func NewService(source Source, dir string, retention int, logger *slog.Logger) *Service {
	if retention < 1 {
		retention = 10
	}
	return &Service{source: source, dir: dir, retention: retention, logger: logger}
}

// Create snapshots the dataset into a new workbook and prunes old files
// past the retention count.
func (s *Service) Create(ctx context.Context) (File, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return File{}, fmt.Errorf("backup dir: %w", err)
	}

	tables, err := s.source.Snapshot(ctx)
	if err != nil {
		return File{}, fmt.Errorf("snapshot: %w", err)
	}

	name := filePrefix + time.Now().Format("20060102_150405") + ".xlsx"
	path := filepath.Join(s.dir, name)
	if err := writeWorkbook(path, tables); err != nil {
		return File{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat backup: %w", err)
	}
	s.logger.Info("backup created", "file", name, "tables", len(tables), "bytes", info.Size())

	if err := s.prune(); err != nil {
		s.logger.Warn("backup retention sweep failed", "error", err)
	}
	return File{Name: name, SizeBytes: info.Size(), CreatedAt: info.ModTime()}, nil
}

// List returns stored backups, newest first.
func (s *Service) List() ([]File, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return []File{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	files := []File{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), filePrefix) || !strings.HasSuffix(entry.Name(), ".xlsx") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, File{Name: entry.Name(), SizeBytes: info.Size(), CreatedAt: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name > files[j].Name })
	return files, nil
}

// Delete removes one backup by name. The name must be a bare filename from
// List, never a path.
func (s *Service) Delete(name string) error {
	if name != filepath.Base(name) || !strings.HasPrefix(name, filePrefix) {
		return ErrNotFound
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	return nil
}

// Path resolves a stored backup for download.
func (s *Service) Path(name string) (string, error) {
	if name != filepath.Base(name) || !strings.HasPrefix(name, filePrefix) {
		return "", ErrNotFound
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", ErrNotFound
	}
	return path, nil
}

func (s *Service) prune() error {
	files, err := s.List()
	if err != nil {
		return err
	}
	for _, old := range files[min(s.retention, len(files)):] {
		if err := os.Remove(filepath.Join(s.dir, old.Name)); err != nil {
			return err
		}
		s.logger.Info("backup pruned", "file", old.Name)
	}
	return nil
}

func writeWorkbook(path string, tables []Table) error {
	wb := excelize.NewFile()
	defer func() { _ = wb.Close() }()

	for i, table := range tables {
		sheet := table.Name
		if i == 0 {
			if err := wb.SetSheetName(wb.GetSheetName(0), sheet); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := wb.NewSheet(sheet); err != nil {
				return fmt.Errorf("new sheet %s: %w", sheet, err)
			}
		}

		header := make([]any, len(table.Header))
		for j, h := range table.Header {
			header[j] = h
		}
		if err := wb.SetSheetRow(sheet, "A1", &header); err != nil {
			return fmt.Errorf("write header %s: %w", sheet, err)
		}
		for rowIdx, row := range table.Rows {
			cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
				return fmt.Errorf("write row %s: %w", sheet, err)
			}
		}
	}

	if err := wb.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
