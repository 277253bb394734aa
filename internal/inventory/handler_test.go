package inventory

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*Handler, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, NewLedger(), nil, nil, logger)
	return NewHandler(logger, svc, validator.New()), repo
}

func TestHandlerApplyMovement(t *testing.T) {
	h, repo := newTestHandler(t)
	repo.seed(1, "10", "0")

	r := chi.NewRouter()
	h.MountRoutes(r)

	body := `{"product_id":1,"quantity":"5","movement_type":"IN"}`
	req := httptest.NewRequest(http.MethodPost, "/movements", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"new_balance":"15.00"`)
}

func TestHandlerApplyMovementRejectsUnknownType(t *testing.T) {
	h, repo := newTestHandler(t)
	repo.seed(1, "10", "0")

	r := chi.NewRouter()
	h.MountRoutes(r)

	body := `{"product_id":1,"quantity":"5","movement_type":"TRANSFER"}`
	req := httptest.NewRequest(http.MethodPost, "/movements", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, repo.movements, "rejected request writes nothing")
}
