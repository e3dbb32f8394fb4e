// Package selection holds the pure helpers that turn reviewed batch results
// into the flat list of blocks a user wants to keep.
package selection

import (
	"context"
	"fmt"
	"strings"

	"github.com/prompt-atelier/promptblocks/internal/blocks"
	"github.com/prompt-atelier/promptblocks/internal/library"
	"github.com/prompt-atelier/promptblocks/internal/models"
)

const msgSaveFailed = "배치 블록 저장에 실패했습니다."

// Map records, per batch result item ID, which block types the user keeps.
// It lives only for the duration of a review session and is never persisted.
type Map map[string]map[blocks.BlockType]bool

// Default selects, for every successful item, every block type whose content
// is non-empty after trimming.
func Default(results []models.BatchResultItem) Map {
	sel := make(Map, len(results))
	for _, item := range results {
		if !item.Succeeded() {
			continue
		}
		sel[item.ID] = nonEmptyTypes(item.Result)
	}
	return sel
}

// SelectAll re-applies the default rule to every successful item; it is the
// bulk "select everything" action.
func SelectAll(results []models.BatchResultItem) Map {
	return Default(results)
}

// ClearAll returns an empty selection.
func ClearAll() Map {
	return Map{}
}

// SelectItem selects every non-empty block type of a single item, leaving the
// rest of the selection untouched.
func SelectItem(sel Map, results []models.BatchResultItem, itemID string) {
	for _, item := range results {
		if item.ID == itemID && item.Succeeded() {
			sel[itemID] = nonEmptyTypes(item.Result)
			return
		}
	}
}

// ClearItem drops a single item's selection.
func ClearItem(sel Map, itemID string) {
	delete(sel, itemID)
}

// Toggle flips membership of one block type in one item's selection set.
func Toggle(sel Map, itemID string, t blocks.BlockType) {
	set := sel[itemID]
	if set == nil {
		set = make(map[blocks.BlockType]bool)
		sel[itemID] = set
	}
	if set[t] {
		delete(set, t)
	} else {
		set[t] = true
	}
}

// Count returns the number of selected (item, block type) pairs whose
// underlying content is still non-empty. Stale selections pointing at
// now-absent content do not count.
func Count(results []models.BatchResultItem, sel Map) int {
	count := 0
	for _, item := range results {
		set := sel[item.ID]
		if set == nil || !item.Succeeded() {
			continue
		}
		for _, t := range blocks.AllTypes {
			if set[t] && item.Result.HasContent(t) {
				count++
			}
		}
	}
	return count
}

// BuildBlocksToSave flattens the selection into save records: items in
// original batch order, block types in the canonical 13-key order. Selected
// pairs whose content is empty are dropped.
func BuildBlocksToSave(results []models.BatchResultItem, sel Map) []models.BlockToSave {
	toSave := []models.BlockToSave{}
	for _, item := range results {
		set := sel[item.ID]
		if set == nil || !item.Succeeded() {
			continue
		}
		for _, t := range blocks.AllTypes {
			if !set[t] {
				continue
			}
			content := strings.TrimSpace(item.Result.Value(t))
			if content == "" {
				continue
			}
			toSave = append(toSave, models.BlockToSave{
				BlockType: t,
				Content:   content,
			})
		}
	}
	return toSave
}

// Saver is the persistence collaborator.
type Saver interface {
	SaveBlocks(ctx context.Context, userID string, toSave []models.BlockToSave, collectionID string) ([]library.Block, error)
}

// SaveSelectedBlocks flattens the selection and hands it to the saver. An
// empty save list short-circuits to a no-op without touching the
// collaborator. Collaborator errors without a usable message are replaced by
// a generic one.
func SaveSelectedBlocks(ctx context.Context, saver Saver, userID string, results []models.BatchResultItem, sel Map, collectionID string) ([]library.Block, error) {
	toSave := BuildBlocksToSave(results, sel)
	if len(toSave) == 0 {
		return []library.Block{}, nil
	}

	saved, err := saver.SaveBlocks(ctx, userID, toSave, collectionID)
	if err != nil {
		if strings.TrimSpace(err.Error()) == "" {
			return nil, fmt.Errorf("%s", msgSaveFailed)
		}
		return nil, fmt.Errorf("%s: %w", msgSaveFailed, err)
	}
	return saved, nil
}

func nonEmptyTypes(result *blocks.DecomposeResult) map[blocks.BlockType]bool {
	set := make(map[blocks.BlockType]bool)
	for _, t := range blocks.AllTypes {
		if result.HasContent(t) {
			set[t] = true
		}
	}
	return set
}
