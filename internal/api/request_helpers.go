package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/api/shared"
	"github.com/phrazzld/taskd/internal/domain"
	"github.com/phrazzld/taskd/internal/platform/logger"
	"github.com/phrazzld/taskd/internal/service"
)

// getUserIDFromContext extracts the authenticated user's UUID placed in the
// context by the authentication middleware.
func getUserIDFromContext(r *http.Request) (uuid.UUID, bool) {
	return shared.UserIDFromContext(r.Context())
}

// getPathUUID parses the named chi path parameter as a UUID.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}
	return id, nil
}

// handlePathUUID extracts the named path UUID, writing a 400 response and
// returning false when it is missing or malformed.
func handlePathUUID(w http.ResponseWriter, r *http.Request, paramName string, log *slog.Logger) (uuid.UUID, bool) {
	if log == nil {
		log = logger.FromContextOrDefault(r.Context(), slog.Default())
	}

	id, err := getPathUUID(r, paramName)
	if err != nil {
		log.Warn("invalid path parameter",
			slog.String("param_name", paramName),
			slog.String("value", chi.URLParam(r, paramName)))
		HandleAPIError(w, r, err, "")
		return uuid.Nil, false
	}
	return id, true
}

// parseTaskFilter reads status, priority, search, page and limit from the
// query string. Range checks are left to service.TaskFilter.Normalize.
func parseTaskFilter(q url.Values) (service.TaskFilter, error) {
	filter := service.TaskFilter{
		Status:   domain.TaskStatus(q.Get("status")),
		Priority: domain.TaskPriority(q.Get("priority")),
		Search:   q.Get("search"),
	}

	var err error
	if filter.Page, err = parseIntParam(q, "page"); err != nil {
		return filter, err
	}
	if filter.Limit, err = parseIntParam(q, "limit"); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseIntParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, domain.NewValidationError(name, "must be a positive integer", nil)
	}
	return n, nil
}

// parseIfUnmodifiedSince reads the If-Unmodified-Since precondition. HTTP
// dates have one-second resolution, so a task updated within the named
// second still satisfies it.
func parseIfUnmodifiedSince(r *http.Request) (*time.Time, error) {
	raw := r.Header.Get("If-Unmodified-Since")
	if raw == "" {
		return nil, nil
	}
	t, err := http.ParseTime(raw)
	if err != nil {
		return nil, domain.NewValidationError("If-Unmodified-Since", "is not a valid HTTP date", nil)
	}
	since := t.UTC().Add(time.Second - time.Microsecond)
	return &since, nil
}

func parseTaskIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, domain.NewValidationError("taskIds", "must contain only UUIDs", domain.ErrInvalidID)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
