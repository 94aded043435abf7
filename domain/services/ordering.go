// Package services holds domain logic that spans several rows of a recipe.
//
// The ordering functions keep the instruction orders of a recipe a dense 1..N
// sequence. They are pure: callers load the current instructions, ask for a
// plan, and persist the rows the plan returns.
package services

import (
	"fmt"
	"sort"

	"recipes-backend/domain/core/entities"
	pkgerrors "recipes-backend/pkg/errors"
)

// InsertPlan is the set of writes needed to insert one instruction
type InsertPlan struct {
	// Instruction is the new row at its final, clamped order
	Instruction entities.Instruction
	// Shifted holds existing rows moved up by one, ascending by their new order
	Shifted []entities.Instruction
}

// IsAppend reports whether the insert touches no existing rows
func (p InsertPlan) IsAppend() bool {
	return len(p.Shifted) == 0
}

// Writes returns every row the plan persists: shifted rows first, then the new row
func (p InsertPlan) Writes() []entities.Instruction {
	writes := make([]entities.Instruction, 0, len(p.Shifted)+1)
	writes = append(writes, p.Shifted...)
	return append(writes, p.Instruction)
}

// ClampOrder maps a requested 1-based position into [1, count+1].
// A nil request means append.
func ClampOrder(requested *int, count int) int {
	if requested == nil {
		return count + 1
	}
	switch {
	case *requested < 1:
		return 1
	case *requested > count+1:
		return count + 1
	default:
		return *requested
	}
}

// LastOrder returns the highest order in use, or the row count when that is
// larger. Gaps left by an uncompacted delete or a sparse reorder make the two
// differ.
func LastOrder(existing []entities.Instruction) int {
	last := len(existing)
	for _, row := range existing {
		if row.Order > last {
			last = row.Order
		}
	}
	return last
}

// PlanInsert places instr among existing at the requested position.
//
// Positions are clamped against the highest order in use, which is the row
// count while orders are dense. When the clamped position is one past it the
// plan is an append and no existing row changes. Otherwise every existing row
// whose order is at or after the target moves up by exactly one, so the new row
// lands before the row that held the target position.
func PlanInsert(existing []entities.Instruction, instr entities.Instruction, requested *int) InsertPlan {
	last := LastOrder(existing)
	target := ClampOrder(requested, last)
	plan := InsertPlan{Instruction: instr.WithOrder(target)}

	if target == last+1 {
		return plan
	}

	current := sortedCopy(existing)
	for _, row := range current {
		if row.Order >= target {
			plan.Shifted = append(plan.Shifted, row.WithOrder(row.Order+1))
		}
	}
	return plan
}

// DeletePlan is the set of writes needed to remove one instruction
type DeletePlan struct {
	Removed entities.Instruction
	// Shifted holds rows after the removed one, each moved down by one
	Shifted []entities.Instruction
}

// PlanDelete removes itemID from existing and closes the gap it leaves
func PlanDelete(existing []entities.Instruction, itemID string) (DeletePlan, error) {
	current := sortedCopy(existing)

	idx := -1
	for i, row := range current {
		if row.ItemID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return DeletePlan{}, pkgerrors.NewNotFoundError("instruction")
	}

	plan := DeletePlan{Removed: current[idx]}
	for i, row := range current {
		if i != idx && row.Order > plan.Removed.Order {
			plan.Shifted = append(plan.Shifted, row.WithOrder(row.Order-1))
		}
	}
	return plan, nil
}

// Move assigns a new order to one instruction
type Move struct {
	ItemID string
	Order  int
}

// ReorderPlan lists the instructions whose order changes
type ReorderPlan struct {
	Updated []entities.Instruction
}

// PlanReorder applies caller-supplied moves to the current instructions.
//
// Each move must name an existing instruction and a positive order. The result
// is not checked for density: the caller is trusted to send a permutation.
// Moves that keep an instruction where it is produce no write.
func PlanReorder(existing []entities.Instruction, moves []Move) (ReorderPlan, error) {
	byID := make(map[string]entities.Instruction, len(existing))
	for _, row := range existing {
		byID[row.ItemID] = row
	}

	seen := make(map[string]struct{}, len(moves))
	var plan ReorderPlan
	for _, m := range moves {
		if m.Order < 1 {
			return ReorderPlan{}, pkgerrors.NewValidationError(fmt.Sprintf("order for %s must be at least 1", m.ItemID))
		}
		if _, dup := seen[m.ItemID]; dup {
			return ReorderPlan{}, pkgerrors.NewValidationError(fmt.Sprintf("instruction %s appears more than once", m.ItemID))
		}
		seen[m.ItemID] = struct{}{}

		row, ok := byID[m.ItemID]
		if !ok {
			return ReorderPlan{}, pkgerrors.NewNotFoundError(fmt.Sprintf("instruction %s", m.ItemID))
		}
		if row.Order != m.Order {
			plan.Updated = append(plan.Updated, row.WithOrder(m.Order))
		}
	}
	return plan, nil
}

// Normalize assigns dense orders to instructions supplied together, for
// example the steps of a recipe created in one request. Instructions are
// ranked by their requested order; zero means "after every numbered step".
// Ties keep input order.
func Normalize(instructions []entities.Instruction) []entities.Instruction {
	out := make([]entities.Instruction, len(instructions))
	copy(out, instructions)

	rank := func(o int) int {
		if o <= 0 {
			return int(^uint(0) >> 1)
		}
		return o
	}
	sort.SliceStable(out, func(a, b int) bool {
		return rank(out[a].Order) < rank(out[b].Order)
	})
	for i := range out {
		out[i].Order = i + 1
	}
	return out
}

// IsDense reports whether the orders of instructions are exactly {1..N}
func IsDense(instructions []entities.Instruction) bool {
	seen := make([]bool, len(instructions)+1)
	for _, row := range instructions {
		if row.Order < 1 || row.Order > len(instructions) || seen[row.Order] {
			return false
		}
		seen[row.Order] = true
	}
	return true
}

func sortedCopy(instructions []entities.Instruction) []entities.Instruction {
	out := make([]entities.Instruction, len(instructions))
	copy(out, instructions)
	entities.SortInstructions(out)
	return out
}
