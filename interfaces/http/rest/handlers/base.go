// Package handlers adapts HTTP requests to commands and queries on the buses.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"recipes-backend/application/commands/bus"
	querybus "recipes-backend/application/queries/bus"
	"recipes-backend/pkg/auth"
	"recipes-backend/pkg/common"
	pkgerrors "recipes-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type base struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

func newBase(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) base {
	return base{commandBus: commandBus, queryBus: queryBus, errors: errs, logger: logger}
}

func (b *base) fail(w http.ResponseWriter, r *http.Request, err error) {
	b.errors.Handle(w, r, err)
}

// ask runs a query and asserts the result type
func ask[T any](ctx context.Context, b *base, query querybus.Query) (T, error) {
	var zero T
	result, err := b.queryBus.Ask(ctx, query)
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, pkgerrors.NewInternalError(fmt.Sprintf("unexpected result %T for %T", result, query))
	}
	return typed, nil
}

func callerID(r *http.Request) (string, error) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		return "", pkgerrors.NewUnauthenticatedError("")
	}
	return user.UserID, nil
}

func pathParam(r *http.Request, name string) (string, error) {
	value := chi.URLParam(r, name)
	if value == "" {
		return "", pkgerrors.NewValidationError(fmt.Sprintf("%s is required", name))
	}
	return value, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := common.ParseJSONBody(w, r, v, maxBodyBytes); err != nil {
		return pkgerrors.NewValidationError("invalid request body: " + err.Error()).WithCause(err)
	}
	return nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, pkgerrors.NewValidationError(fmt.Sprintf("%s must be a non-negative integer", name))
	}
	return n, nil
}
