package library

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prompt-atelier/promptblocks/internal/models"
)

// Block is one saved prompt fragment in a user's personal library.
type Block struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	BlockType    string `json:"block_type"`
	Content      string `json:"content"`
	CollectionID string `json:"collection_id,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// Store is an in-memory per-user block library.
type Store struct {
	mu     sync.RWMutex
	blocks map[string][]Block // userID → blocks in save order
	nextID int
}

// NewStore creates an empty library store.
func NewStore() *Store {
	return &Store{
		blocks: make(map[string][]Block),
	}
}

// SaveBlocks persists the flat save list for a user and returns the created
// blocks in input order.
func (s *Store) SaveBlocks(ctx context.Context, userID string, toSave []models.BlockToSave, collectionID string) ([]Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	saved := make([]Block, 0, len(toSave))
	for _, b := range toSave {
		s.nextID++
		block := Block{
			ID:           fmt.Sprintf("blk_%d", s.nextID),
			UserID:       userID,
			BlockType:    string(b.BlockType),
			Content:      b.Content,
			CollectionID: collectionID,
			CreatedAt:    now,
		}
		s.blocks[userID] = append(s.blocks[userID], block)
		saved = append(saved, block)
	}

	return saved, nil
}

// ListBlocks returns every block the user has saved, oldest first.
func (s *Store) ListBlocks(userID string) []Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.blocks[userID]
	result := make([]Block, len(stored))
	copy(result, stored)
	return result
}

// DeleteBlock removes one block by ID. Returns false when the user owns no
// such block.
func (s *Store) DeleteBlock(userID, blockID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.blocks[userID]
	for i, b := range stored {
		if b.ID == blockID {
			s.blocks[userID] = append(stored[:i:i], stored[i+1:]...)
			return true
		}
	}
	return false
}
