// Package house manages the lifecycle of houses: creation, listing,
// membership changes and deletion.
package house

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukerupert/flatmate/internal/access"
	"github.com/dukerupert/flatmate/internal/apperr"
	"github.com/dukerupert/flatmate/internal/model"
	"github.com/dukerupert/flatmate/internal/store"
)

type Service struct {
	houses *store.HouseStore
	auth   *access.Authority
}

func NewService(houses *store.HouseStore, auth *access.Authority) *Service {
	return &Service{houses: houses, auth: auth}
}

// Create makes ownerID the creator of a new house. The creator is counted
// as a member without holding a membership row.
func (s *Service) Create(ctx context.Context, ownerID int64, name string, description *string) (*model.HouseSummary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("house name is required")
	}

	h, err := s.houses.Create(ctx, name, description, ownerID)
	if err != nil {
		return nil, fmt.Errorf("create house: %w", err)
	}
	return &model.HouseSummary{
		ID:           h.ID,
		Name:         h.Name,
		Description:  h.Description,
		MembersCount: 1,
		CreatedAt:    h.CreatedAt,
		IsCreator:    true,
	}, nil
}

func (s *Service) ListForUser(ctx context.Context, userID int64) ([]model.HouseSummary, error) {
	houses, err := s.houses.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if houses == nil {
		houses = []model.HouseSummary{}
	}
	return houses, nil
}

// Members lists the creator followed by the members of a house the user
// can act in.
func (s *Service) Members(ctx context.Context, userID, houseID int64) ([]model.HouseMember, error) {
	h, err := s.auth.ActableHouse(ctx, userID, houseID)
	if err != nil {
		return nil, err
	}
	return s.houses.ListMembers(ctx, h)
}

func (s *Service) Invite(ctx context.Context, actorID, houseID int64, email string) (*model.User, *model.House, error) {
	return s.auth.Invite(ctx, actorID, houseID, email)
}

// Exit removes the caller's own membership row. The creator cannot exit.
func (s *Service) Exit(ctx context.Context, userID, houseID int64) (*model.House, error) {
	h, err := s.auth.House(ctx, houseID)
	if err != nil {
		return nil, err
	}

	lvl, err := s.auth.Level(ctx, userID, h)
	if err != nil {
		return nil, err
	}
	switch lvl {
	case access.Creator:
		return nil, apperr.ErrForbiddenCreatorExit
	case access.None:
		return nil, apperr.ErrForbidden
	}

	if err := s.houses.RemoveMember(ctx, h.ID, userID); err != nil {
		return nil, err
	}
	return h, nil
}

// Delete removes the house with all its tasks and memberships. Only the
// creator may delete.
func (s *Service) Delete(ctx context.Context, userID, houseID int64) (*model.House, error) {
	h, err := s.auth.House(ctx, houseID)
	if err != nil {
		return nil, err
	}

	ok, err := s.auth.CanDelete(ctx, userID, h)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrNotCreator
	}

	if err := s.houses.DeleteCascade(ctx, h.ID); err != nil {
		return nil, err
	}
	return h, nil
}

// AudienceIDs returns the users who should hear about changes to a house.
func (s *Service) AudienceIDs(ctx context.Context, houseID int64) ([]int64, error) {
	return s.houses.AudienceIDs(ctx, houseID)
}
