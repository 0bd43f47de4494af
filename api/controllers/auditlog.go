package controllers

import (
	"net/http"
	"strconv"

	"github.com/angelmondragon/miyf-books/api/responses"
	"github.com/angelmondragon/miyf-books/api/validators"
	"github.com/angelmondragon/miyf-books/internal/auditlog"
	pkgerrors "github.com/angelmondragon/miyf-books/pkg/errors"
	"github.com/angelmondragon/miyf-books/pkg/logger"
	"github.com/angelmondragon/miyf-books/pkg/pagination"
)

const nextCursorHeader = "X-Next-Cursor"

// AuditLogRead returns visible entries; basic users only see their own.
// With ?limit or ?cursor it returns one page and sets X-Next-Cursor when
// more entries remain.
func AuditLogRead(svc auditlog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !params.Requested() {
			entries, err := svc.List(r.Context(), actor)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, entries)
			return
		}

		page, err := svc.Page(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if page.NextCursor != "" {
			w.Header().Set(nextCursorHeader, page.NextCursor)
		}
		responses.WriteSuccess(w, page.Entries)
	}
}

func AuditLogClear(svc auditlog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cleared, err := svc.Clear(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"cleared": cleared})
	}
}

func pageParams(r *http.Request) (pagination.Params, error) {
	params := pagination.Params{Cursor: validators.QueryParam(r, "cursor")}
	if raw := validators.QueryParam(r, "limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return params, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer").
				WithDetails(map[string]any{"field": "limit"})
		}
		params.Limit = limit
	}
	return params, nil
}
