package commands

// IngredientInput is an ingredient supplied with a new recipe
type IngredientInput struct {
	Title    string  `json:"title" validate:"required,max=200"`
	Quantity float64 `json:"quantity" validate:"gte=0"`
	Units    string  `json:"units" validate:"max=32"`
}

// InstructionInput is a step supplied with a new recipe. Order 0 places the
// step after every numbered one.
type InstructionInput struct {
	Step  string `json:"step" validate:"required,max=2000"`
	Order int    `json:"order" validate:"gte=0"`
}

// CreateRecipeCommand creates a recipe header and, optionally, its first rows
type CreateRecipeCommand struct {
	RecipeID     string             `validate:"required"`
	UserID       string             `validate:"required"`
	Title        string             `validate:"required,max=200"`
	Description  string             `validate:"max=4000"`
	CookTime     int                `validate:"gte=0"`
	PrepTime     int                `validate:"gte=0"`
	Ingredients  []IngredientInput  `validate:"max=100,dive"`
	Instructions []InstructionInput `validate:"max=100,dive"`
}

func (c CreateRecipeCommand) Validate() error { return validateCommand(c) }

// UpdateRecipeCommand replaces the editable header fields
type UpdateRecipeCommand struct {
	RecipeID    string `validate:"required"`
	UserID      string `validate:"required"`
	Title       string `validate:"required,max=200"`
	Description string `validate:"max=4000"`
	CookTime    int    `validate:"gte=0"`
	PrepTime    int    `validate:"gte=0"`
}

func (c UpdateRecipeCommand) Validate() error { return validateCommand(c) }

// DeleteRecipeCommand removes a recipe and every row in its partition
type DeleteRecipeCommand struct {
	RecipeID string `validate:"required"`
	UserID   string `validate:"required"`
}

func (c DeleteRecipeCommand) Validate() error { return validateCommand(c) }

// AttachRecipeImagesCommand records uploaded image URLs on a recipe.
// It is issued by the storage event handler, not by users.
type AttachRecipeImagesCommand struct {
	RecipeID string   `validate:"required"`
	URLs     []string `validate:"required,min=1,dive,required,url"`
}

func (c AttachRecipeImagesCommand) Validate() error { return validateCommand(c) }
