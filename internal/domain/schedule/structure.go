package schedule

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// StructureItemInput is one content segment of a structure template.
type StructureItemInput struct {
	Category string
	Minutes  int
	Note     string
}

// StructureUpdate carries a structure template for one or many
// occurrences. An empty Items list without Clear means "no change
// requested"; clearing an existing structure requires the explicit Clear
// flag.
type StructureUpdate struct {
	Items []StructureItemInput
	Clear bool
}

func (u StructureUpdate) isNoop() bool {
	return !u.Clear && len(u.Items) == 0
}

func validateStructure(update StructureUpdate) error {
	for i, item := range update.Items {
		if strings.TrimSpace(item.Category) == "" {
			return fmt.Errorf("%w: structure item %d: category is required", ErrValidation, i)
		}
		if item.Minutes <= 0 {
			return fmt.Errorf("%w: structure item %d: minutes must be positive", ErrValidation, i)
		}
	}
	return nil
}

// applyStructure replaces the structure of every target occurrence with a
// fresh copy of the template. Positions follow template order; ids are
// regenerated per occurrence.
func applyStructure(ctx context.Context, repo Repository, update StructureUpdate, occurrenceIDs []string) error {
	if update.isNoop() {
		return nil
	}
	for _, occurrenceID := range occurrenceIDs {
		items := buildStructureItems(occurrenceID, update.Items)
		if err := repo.ReplaceStructure(ctx, occurrenceID, items); err != nil {
			return err
		}
	}
	return nil
}

func buildStructureItems(occurrenceID string, inputs []StructureItemInput) []StructureItem {
	items := make([]StructureItem, 0, len(inputs))
	for position, input := range inputs {
		items = append(items, StructureItem{
			ID:           uuid.NewString(),
			OccurrenceID: occurrenceID,
			Category:     strings.TrimSpace(input.Category),
			Minutes:      input.Minutes,
			Note:         input.Note,
			Position:     position,
		})
	}
	return items
}

// structureTemplateOf converts stored items back into a reusable template,
// preserving their order.
func structureTemplateOf(items []StructureItem) StructureUpdate {
	inputs := make([]StructureItemInput, 0, len(items))
	for _, item := range items {
		inputs = append(inputs, StructureItemInput{
			Category: item.Category,
			Minutes:  item.Minutes,
			Note:     item.Note,
		})
	}
	return StructureUpdate{Items: inputs}
}
