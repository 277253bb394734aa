package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	entries    []Entry
	insertErr  error
	lastOffset int
	lastLimit  int
	lastFilter Filter
}

func (s *stubRepo) Insert(_ context.Context, e Entry) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	e.ID = int64(len(s.entries) + 1)
	e.CreatedAt = time.Now()
	s.entries = append(s.entries, e)
	return nil
}

func (s *stubRepo) Window(_ context.Context, filter Filter, offset, limit int) ([]Entry, error) {
	s.lastFilter = filter
	s.lastOffset = offset
	s.lastLimit = limit

	out := []Entry{}
	for i := len(s.entries) - 1; i >= 0; i-- {
		out = append(out, s.entries[i])
	}
	if offset >= len(out) {
		return []Entry{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestService(repo *stubRepo) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seedEntries(repo *stubRepo, n int) {
	for i := 0; i < n; i++ {
		_ = repo.Insert(context.Background(), Entry{
			UserID: 9, Action: "CREATE", Entity: "products", EntityID: int64(i + 1),
		})
	}
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubRepo{}
	seedEntries(repo, 5)
	svc := newTestService(repo)

	result, err := svc.Timeline(context.Background(), Filter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
	assert.True(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.NextPage)
	assert.Zero(t, result.Paging.PrevPage)
	assert.Equal(t, 3, repo.lastLimit, "fetches one past the page")
	assert.Equal(t, int64(5), result.Rows[0].EntityID, "newest first")

	result, err = svc.Timeline(context.Background(), Filter{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
	assert.False(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.PrevPage)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo)

	_, err := svc.Timeline(context.Background(), Filter{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize+1, repo.lastLimit)

	_, err = svc.Timeline(context.Background(), Filter{Page: -2})
	require.NoError(t, err)
	assert.Zero(t, repo.lastOffset)
}

func TestRecordSwallowsFailure(t *testing.T) {
	repo := &stubRepo{insertErr: errors.New("connection lost")}
	svc := newTestService(repo)

	assert.NotPanics(t, func() {
		svc.Record(context.Background(), 9, "CREATE", "products", 1, "")
	})
}

func TestExportCSV(t *testing.T) {
	repo := &stubRepo{}
	seedEntries(repo, 3)
	svc := newTestService(repo)

	data, err := svc.ExportCSV(context.Background(), Filter{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "at,user_id,username,action,entity,entity_id,details", lines[0])
	assert.Contains(t, lines[1], "CREATE")
	assert.Zero(t, repo.lastLimit, "export is unpaged")
}
