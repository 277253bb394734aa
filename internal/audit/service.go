package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"log/slog"
	"strconv"
	"time"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Repository persists and queries audit entries.
type Repository interface {
	Insert(ctx context.Context, e Entry) error
	Window(ctx context.Context, filter Filter, offset, limit int) ([]Entry, error)
}

// Service coordinates audit writes and timeline reads.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record appends one entry. Audit failures never abort the operation being
// audited; they are logged and swallowed here.
func (s *Service) Record(ctx context.Context, userID int64, action, entity string, entityID int64, details string) {
	if s == nil || s.repo == nil {
		return
	}
	err := s.repo.Insert(ctx, Entry{
		UserID:   userID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Details:  details,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit write failed",
			slog.String("action", action),
			slog.String("entity", entity),
			slog.Int64("entity_id", entityID),
			slog.Any("error", err),
		)
	}
}

// Timeline returns one page of entries, newest first. It fetches one row
// past the page to learn whether a next page exists.
func (s *Service) Timeline(ctx context.Context, filter Filter) (Result, error) {
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := s.repo.Window(ctx, filter, offset, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}

	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// ExportCSV renders the filtered timeline, unpaged, as CSV bytes.
func (s *Service) ExportCSV(ctx context.Context, filter Filter) ([]byte, error) {
	rows, err := s.repo.Window(ctx, filter, 0, 0)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"at", "user_id", "username", "action", "entity", "entity_id", "details"})
	for _, e := range rows {
		_ = w.Write([]string{
			e.CreatedAt.Format(time.RFC3339),
			strconv.FormatInt(e.UserID, 10),
			e.Username,
			e.Action,
			e.Entity,
			strconv.FormatInt(e.EntityID, 10),
			e.Details,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
