package commands

// InsertInstructionCommand inserts a step at Order, or appends when Order is nil
type InsertInstructionCommand struct {
	InstructionID string `validate:"required"`
	RecipeID      string `validate:"required"`
	UserID        string `validate:"required"`
	Step          string `validate:"required,max=2000"`
	Order         *int
}

func (c InsertInstructionCommand) Validate() error { return validateCommand(c) }

// UpdateInstructionCommand changes the text of a step. Its order is kept.
type UpdateInstructionCommand struct {
	InstructionID string `validate:"required"`
	RecipeID      string `validate:"required"`
	UserID        string `validate:"required"`
	Step          string `validate:"required,max=2000"`
}

func (c UpdateInstructionCommand) Validate() error { return validateCommand(c) }

// DeleteInstructionCommand removes a step
type DeleteInstructionCommand struct {
	InstructionID string `validate:"required"`
	RecipeID      string `validate:"required"`
	UserID        string `validate:"required"`
}

func (c DeleteInstructionCommand) Validate() error { return validateCommand(c) }

// InstructionMove assigns a new order to one step
type InstructionMove struct {
	ItemID string `json:"itemId" validate:"required"`
	Order  int    `json:"order" validate:"gte=1"`
}

// ReorderInstructionsCommand applies a caller-supplied permutation of orders
type ReorderInstructionsCommand struct {
	RecipeID string            `validate:"required"`
	UserID   string            `validate:"required"`
	Moves    []InstructionMove `validate:"required,min=1,max=100,dive"`
}

func (c ReorderInstructionsCommand) Validate() error { return validateCommand(c) }
