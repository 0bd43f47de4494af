package controllers

import (
	"net/http"

	"github.com/angelmondragon/miyf-books/api/middleware"
	pkgerrors "github.com/angelmondragon/miyf-books/pkg/errors"
	"github.com/angelmondragon/miyf-books/pkg/types"
)

func requireActor(r *http.Request) (types.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return types.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return actor, nil
}
