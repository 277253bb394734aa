package backup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type stubSource struct {
	tables []Table
	err    error
}

func (s *stubSource) Snapshot(context.Context) ([]Table, error) {
	return s.tables, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateWritesReadableWorkbook(t *testing.T) {
	dir := t.TempDir()
	source := &stubSource{tables: []Table{
		{
			Name:   "products",
			Header: []string{"id", "sku", "name"},
			Rows: [][]any{
				{int64(1), "PLY001", "Marine Plywood 18mm"},
				{int64(2), "LAM001", "Decorative Laminate"},
			},
		},
		{
			Name:   "customers",
			Header: []string{"id", "name"},
			Rows:   [][]any{{int64(1), "Sharma Interiors"}},
		},
	}}
	svc := NewService(source, dir, 10, discardLogger())

	file, err := svc.Create(context.Background())
	require.NoError(t, err)
	require.Regexp(t, `^backup_\d{8}_\d{6}\.xlsx$`, file.Name)
	require.Positive(t, file.SizeBytes)

	wb, err := excelize.OpenFile(filepath.Join(dir, file.Name))
	require.NoError(t, err)
	defer wb.Close()

	require.Equal(t, []string{"products", "customers"}, wb.GetSheetList())

	sku, err := wb.GetCellValue("products", "B3")
	require.NoError(t, err)
	require.Equal(t, "LAM001", sku)
	name, err := wb.GetCellValue("customers", "B2")
	require.NoError(t, err)
	require.Equal(t, "Sharma Interiors", name)
}

func TestCreateSnapshotFailure(t *testing.T) {
	dir := t.TempDir()
	source := &stubSource{err: errors.New("connection refused")}
	svc := NewService(source, dir, 10, discardLogger())

	_, err := svc.Create(context.Background())
	require.Error(t, err)

	files, err := svc.List()
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestRetentionKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"backup_20010801_090000.xlsx",
		"backup_20010802_090000.xlsx",
		"backup_20010803_090000.xlsx",
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	source := &stubSource{tables: []Table{{Name: "products", Header: []string{"id"}}}}
	svc := NewService(source, dir, 2, discardLogger())

	file, err := svc.Create(context.Background())
	require.NoError(t, err)

	files, err := svc.List()
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, file.Name, files[0].Name)
	require.Equal(t, "backup_20010803_090000.xlsx", files[1].Name)

	// Non-backup files are left alone.
	_, err = os.Stat(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
}

func TestListEmptyDir(t *testing.T) {
	svc := NewService(&stubSource{}, filepath.Join(t.TempDir(), "missing"), 10, discardLogger())
	files, err := svc.List()
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestDeleteAndPathValidateNames(t *testing.T) {
	dir := t.TempDir()
	name := "backup_20010801_090000.xlsx"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	svc := NewService(&stubSource{}, dir, 10, discardLogger())

	for _, bad := range []string{
		"../backup_20010801_090000.xlsx",
		"/etc/passwd",
		"schema.sql",
		"backup_missing.xlsx",
	} {
		require.ErrorIs(t, svc.Delete(bad), ErrNotFound, bad)
		_, err := svc.Path(bad)
		require.ErrorIs(t, err, ErrNotFound, bad)
	}

	path, err := svc.Path(name)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, name), path)

	require.NoError(t, svc.Delete(name))
	require.ErrorIs(t, svc.Delete(name), ErrNotFound)
}
