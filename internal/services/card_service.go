package services

import (
	"context"
	"fmt"

	"financas/internal/core"
	"financas/internal/id"
	"financas/internal/log"
	"financas/internal/storage"
)

// CardService manages payment cards. Deleting a card detaches its
// transactions rather than removing them.
type CardService struct {
	storage *storage.SQLiteRepository
	ids     *id.Generator
	logger  *log.Logger
}

func NewCardService(repo *storage.SQLiteRepository, ids *id.Generator, logger *log.Logger) *CardService {
	return &CardService{
		storage: repo,
		ids:     ids,
		logger:  logger.WithComponent(log.ComponentService),
	}
}

func (s *CardService) Create(ctx context.Context, card core.Card) (core.Card, error) {
	card.ID = s.ids.Next()
	if err := card.Validate(); err != nil {
		return core.Card{}, err
	}
	if err := s.storage.CreateCard(ctx, card); err != nil {
		return core.Card{}, fmt.Errorf("persisting card: %w", err)
	}
	s.logger.InfoContext(ctx, "card created",
		log.FieldOperation, log.OpCreate,
		log.FieldCardID, card.ID)
	return card, nil
}

func (s *CardService) Get(ctx context.Context, cardID int64) (core.Card, error) {
	return s.storage.GetCard(ctx, cardID)
}

func (s *CardService) List(ctx context.Context) ([]core.Card, error) {
	return s.storage.ListCards(ctx)
}

// Delete removes the card and clears the card reference on any
// transactions that pointed at it.
func (s *CardService) Delete(ctx context.Context, cardID int64) error {
	if err := s.storage.DeleteCard(ctx, cardID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "card deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldCardID, cardID)
	return nil
}
