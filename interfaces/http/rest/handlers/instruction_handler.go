package handlers

import (
	"net/http"

	"recipes-backend/application/commands"
	"recipes-backend/application/commands/bus"
	"recipes-backend/application/queries"
	querybus "recipes-backend/application/queries/bus"
	"recipes-backend/domain/core/aggregates"
	"recipes-backend/domain/core/entities"
	"recipes-backend/pkg/common"
	pkgerrors "recipes-backend/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InstructionHandler handles instruction HTTP requests
type InstructionHandler struct {
	base
}

// NewInstructionHandler creates a new instruction handler
func NewInstructionHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *InstructionHandler {
	return &InstructionHandler{base: newBase(commandBus, queryBus, errs, logger)}
}

// InsertInstructionRequest is the body of an instruction insert. A missing
// order appends the step.
type InsertInstructionRequest struct {
	Step  string `json:"step"`
	Order *int   `json:"order,omitempty"`
}

// UpdateInstructionRequest is the body of an instruction update
type UpdateInstructionRequest struct {
	Step string `json:"step"`
}

// InsertInstruction handles POST /recipe/{recipeId}/instruction
func (h *InstructionHandler) InsertInstruction(w http.ResponseWriter, r *http.Request) {
	userID, recipeID, ok := h.target(w, r)
	if !ok {
		return
	}
	var req InsertInstructionRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	cmd := commands.InsertInstructionCommand{
		InstructionID: uuid.New().String(),
		RecipeID:      recipeID,
		UserID:        userID,
		Step:          req.Step,
		Order:         req.Order,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondInstruction(w, r, recipeID, cmd.InstructionID, http.StatusCreated)
}

// GetInstruction handles GET /recipe/{recipeId}/instruction/{instructionId}
func (h *InstructionHandler) GetInstruction(w http.ResponseWriter, r *http.Request) {
	recipeID, err := pathParam(r, "recipeId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	instructionID, err := pathParam(r, "instructionId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondInstruction(w, r, recipeID, instructionID, http.StatusOK)
}

// UpdateInstruction handles PUT /recipe/{recipeId}/instruction/{instructionId}
func (h *InstructionHandler) UpdateInstruction(w http.ResponseWriter, r *http.Request) {
	userID, recipeID, ok := h.target(w, r)
	if !ok {
		return
	}
	instructionID, err := pathParam(r, "instructionId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req UpdateInstructionRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	err = h.commandBus.Send(r.Context(), commands.UpdateInstructionCommand{
		InstructionID: instructionID,
		RecipeID:      recipeID,
		UserID:        userID,
		Step:          req.Step,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondInstruction(w, r, recipeID, instructionID, http.StatusOK)
}

// DeleteInstruction handles DELETE /recipe/{recipeId}/instruction/{instructionId}
func (h *InstructionHandler) DeleteInstruction(w http.ResponseWriter, r *http.Request) {
	userID, recipeID, ok := h.target(w, r)
	if !ok {
		return
	}
	instructionID, err := pathParam(r, "instructionId")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	err = h.commandBus.Send(r.Context(), commands.DeleteInstructionCommand{
		InstructionID: instructionID,
		RecipeID:      recipeID,
		UserID:        userID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"recipeId": recipeID, "itemId": instructionID})
}

// ReorderInstructions handles PUT /recipe/{recipeId}/instructions/order.
// The body is the list of moves; the response is the resulting instruction list.
func (h *InstructionHandler) ReorderInstructions(w http.ResponseWriter, r *http.Request) {
	userID, recipeID, ok := h.target(w, r)
	if !ok {
		return
	}
	var moves []commands.InstructionMove
	if err := decodeBody(w, r, &moves); err != nil {
		h.fail(w, r, err)
		return
	}

	err := h.commandBus.Send(r.Context(), commands.ReorderInstructionsCommand{
		RecipeID: recipeID,
		UserID:   userID,
		Moves:    moves,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	recipe, err := ask[*aggregates.RecipeAggregate](r.Context(), &h.base, queries.GetRecipeQuery{RecipeID: recipeID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, recipe.Instructions)
}

func (h *InstructionHandler) target(w http.ResponseWriter, r *http.Request) (userID, recipeID string, ok bool) {
	userID, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return "", "", false
	}
	recipeID, err = pathParam(r, "recipeId")
	if err != nil {
		h.fail(w, r, err)
		return "", "", false
	}
	return userID, recipeID, true
}

func (h *InstructionHandler) respondInstruction(w http.ResponseWriter, r *http.Request, recipeID, instructionID string, status int) {
	instruction, err := ask[*entities.Instruction](r.Context(), &h.base, queries.GetInstructionQuery{
		RecipeID:      recipeID,
		InstructionID: instructionID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, status, instruction)
}
