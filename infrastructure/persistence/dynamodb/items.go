package dynamodb

import (
	"fmt"
	"time"

	"recipes-backend/domain/core/entities"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	attrRecipeID   = "recipeId"
	attrItemID     = "itemId"
	attrEntityType = "entityType"
	attrUserID     = "userId"
	attrSearchName = "searchName"
	attrImageURLs  = "imageUrls"
	attrUpdatedAt  = "updatedAt"
)

// item is the stored shape of every row. Kind-specific attributes are omitted
// when empty so a header never carries a step and an instruction never a title.
type item struct {
	RecipeID    string    `dynamodbav:"recipeId"`
	ItemID      string    `dynamodbav:"itemId"`
	EntityType  string    `dynamodbav:"entityType"`
	UserID      string    `dynamodbav:"userId"`
	Title       string    `dynamodbav:"title,omitempty"`
	Description string    `dynamodbav:"description,omitempty"`
	SearchName  string    `dynamodbav:"searchName,omitempty"`
	CookTime    int       `dynamodbav:"cookTime,omitempty"`
	PrepTime    int       `dynamodbav:"prepTime,omitempty"`
	ImageURLs   []string  `dynamodbav:"imageUrls,omitempty"`
	CreatedAt   time.Time `dynamodbav:"createdAt,omitempty"`
	UpdatedAt   time.Time `dynamodbav:"updatedAt,omitempty"`
	Quantity    float64   `dynamodbav:"quantity,omitempty"`
	Units       string    `dynamodbav:"units,omitempty"`
	Step        string    `dynamodbav:"step,omitempty"`
	Order       int       `dynamodbav:"order,omitempty"`
}

func keyAttributes(key entities.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrRecipeID: &types.AttributeValueMemberS{Value: key.RecipeID},
		attrItemID:   &types.AttributeValueMemberS{Value: key.ItemID},
	}
}

func keyFromAttributes(av map[string]types.AttributeValue) entities.Key {
	var key entities.Key
	if v, ok := av[attrRecipeID].(*types.AttributeValueMemberS); ok {
		key.RecipeID = v.Value
	}
	if v, ok := av[attrItemID].(*types.AttributeValueMemberS); ok {
		key.ItemID = v.Value
	}
	return key
}

// marshalRow converts a row into a DynamoDB item
func marshalRow(row entities.Row) (map[string]types.AttributeValue, error) {
	var it item
	err := entities.MatchRow(row,
		func(r *entities.Recipe) error {
			it = item{
				RecipeID:    r.RecipeID,
				ItemID:      r.RecipeID,
				EntityType:  string(entities.EntityTypeRecipe),
				UserID:      r.UserID,
				Title:       r.Title,
				Description: r.Description,
				SearchName:  r.SearchName,
				CookTime:    r.CookTime,
				PrepTime:    r.PrepTime,
				ImageURLs:   r.ImageURLs,
				CreatedAt:   r.CreatedAt,
				UpdatedAt:   r.UpdatedAt,
			}
			return nil
		},
		func(i *entities.Ingredient) error {
			it = item{
				RecipeID:   i.RecipeID,
				ItemID:     i.ItemID,
				EntityType: string(entities.EntityTypeIngredient),
				UserID:     i.UserID,
				Title:      i.Title,
				Quantity:   i.Quantity,
				Units:      i.Units,
			}
			return nil
		},
		func(i *entities.Instruction) error {
			it = item{
				RecipeID:   i.RecipeID,
				ItemID:     i.ItemID,
				EntityType: string(entities.EntityTypeInstruction),
				UserID:     i.UserID,
				Step:       i.Step,
				Order:      i.Order,
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s row: %w", row.Kind(), err)
	}
	return av, nil
}

// unmarshalRow converts a DynamoDB item into the row its entityType names
func unmarshalRow(av map[string]types.AttributeValue) (entities.Row, error) {
	var it item
	if err := attributevalue.UnmarshalMap(av, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}

	kind, err := entities.ParseEntityType(it.EntityType)
	if err != nil {
		return nil, fmt.Errorf("item %s/%s: %w", it.RecipeID, it.ItemID, err)
	}

	switch kind {
	case entities.EntityTypeRecipe:
		urls := it.ImageURLs
		if urls == nil {
			urls = []string{}
		}
		return &entities.Recipe{
			RecipeID:    it.RecipeID,
			UserID:      it.UserID,
			Title:       it.Title,
			Description: it.Description,
			SearchName:  it.SearchName,
			CookTime:    it.CookTime,
			PrepTime:    it.PrepTime,
			ImageURLs:   urls,
			CreatedAt:   it.CreatedAt,
			UpdatedAt:   it.UpdatedAt,
		}, nil
	case entities.EntityTypeIngredient:
		return &entities.Ingredient{
			RecipeID: it.RecipeID,
			ItemID:   it.ItemID,
			UserID:   it.UserID,
			Title:    it.Title,
			Quantity: it.Quantity,
			Units:    it.Units,
		}, nil
	default:
		return &entities.Instruction{
			RecipeID: it.RecipeID,
			ItemID:   it.ItemID,
			UserID:   it.UserID,
			Step:     it.Step,
			Order:    it.Order,
		}, nil
	}
}
