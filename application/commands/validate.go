// Package commands defines the write operations on recipes and their rows.
// Handlers live in the handlers subpackage and are registered on bus.CommandBus.
package commands

import (
	pkgerrors "recipes-backend/pkg/errors"
	"recipes-backend/pkg/utils"
)

func validateCommand(cmd interface{}) error {
	if err := utils.ValidateStruct(cmd); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	return nil
}
