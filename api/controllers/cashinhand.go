package controllers

import (
	"net/http"

	"github.com/angelmondragon/miyf-books/api/responses"
	"github.com/angelmondragon/miyf-books/api/validators"
	"github.com/angelmondragon/miyf-books/internal/cashinhand"
	pkgerrors "github.com/angelmondragon/miyf-books/pkg/errors"
	"github.com/angelmondragon/miyf-books/pkg/logger"
)

func CashInHandRead(svc cashinhand.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cash in hand service unavailable"))
			return
		}
		ledger, err := svc.Balance(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ledger)
	}
}

func CashInHandAdjust(svc cashinhand.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cash in hand service unavailable"))
			return
		}
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input cashinhand.AdjustInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.Adjust(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}
