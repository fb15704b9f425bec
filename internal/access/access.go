// Package access decides what a user may do in a house.
//
// A user's standing in a house is derived, never stored: the creator is
// identified by House.CreatorID and holds no membership row, everyone else
// is a member exactly when a membership row exists.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukerupert/flatmate/internal/apperr"
	"github.com/dukerupert/flatmate/internal/model"
	"github.com/dukerupert/flatmate/internal/store"
)

// Level is a user's standing with respect to one house.
type Level int

const (
	None Level = iota
	Member
	Creator
)

func (l Level) String() string {
	switch l {
	case Creator:
		return "CREATOR"
	case Member:
		return "MEMBER"
	default:
		return "NONE"
	}
}

type HouseRepository interface {
	GetByID(ctx context.Context, id int64) (*model.House, error)
	GetMember(ctx context.Context, houseID, userID int64) (*model.HouseMembership, error)
	AddMember(ctx context.Context, houseID, userID int64) (*model.HouseMembership, error)
}

type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

type Authority struct {
	houses HouseRepository
	users  UserFinder
}

func NewAuthority(houses HouseRepository, users UserFinder) *Authority {
	return &Authority{houses: houses, users: users}
}

// Level computes the standing of userID in house.
func (a *Authority) Level(ctx context.Context, userID int64, house *model.House) (Level, error) {
	if house.CreatorID == userID {
		return Creator, nil
	}
	m, err := a.houses.GetMember(ctx, house.ID, userID)
	if err != nil {
		return None, fmt.Errorf("access level: %w", err)
	}
	if m != nil {
		return Member, nil
	}
	return None, nil
}

// CanAct reports whether the user may view and change the house's tasks
// and invite new members.
func (a *Authority) CanAct(ctx context.Context, userID int64, house *model.House) (bool, error) {
	lvl, err := a.Level(ctx, userID, house)
	return lvl != None, err
}

// CanDelete reports whether the user may delete the house.
func (a *Authority) CanDelete(ctx context.Context, userID int64, house *model.House) (bool, error) {
	lvl, err := a.Level(ctx, userID, house)
	return lvl == Creator, err
}

// CanExit reports whether the user may leave the house. The creator never
// can; they delete the house instead.
func (a *Authority) CanExit(ctx context.Context, userID int64, house *model.House) (bool, error) {
	lvl, err := a.Level(ctx, userID, house)
	return lvl == Member, err
}

// House loads a house, returning apperr.ErrHouseNotFound if it is absent.
func (a *Authority) House(ctx context.Context, houseID int64) (*model.House, error) {
	h, err := a.houses.GetByID(ctx, houseID)
	if err != nil {
		return nil, fmt.Errorf("get house: %w", err)
	}
	if h == nil {
		return nil, apperr.ErrHouseNotFound
	}
	return h, nil
}

// RequireAct returns apperr.ErrForbidden unless the user can act in house.
func (a *Authority) RequireAct(ctx context.Context, userID int64, house *model.House) error {
	ok, err := a.CanAct(ctx, userID, house)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrForbidden
	}
	return nil
}

// ActableHouse loads a house and checks the user can act in it.
func (a *Authority) ActableHouse(ctx context.Context, userID, houseID int64) (*model.House, error) {
	h, err := a.House(ctx, houseID)
	if err != nil {
		return nil, err
	}
	if err := a.RequireAct(ctx, userID, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Invite adds the user registered under email to the house. Checks run in
// order: house exists, actor can act, target exists, target is not already
// creator or member. The membership unique index catches concurrent
// invites that pass the check together.
func (a *Authority) Invite(ctx context.Context, actorID, houseID int64, email string) (*model.User, *model.House, error) {
	h, err := a.ActableHouse(ctx, actorID, houseID)
	if err != nil {
		return nil, nil, err
	}

	target, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("find invitee: %w", err)
	}
	if target == nil {
		return nil, nil, apperr.ErrUserNotFound
	}

	lvl, err := a.Level(ctx, target.ID, h)
	if err != nil {
		return nil, nil, err
	}
	if lvl != None {
		return nil, nil, apperr.ErrAlreadyMember
	}

	if _, err := a.houses.AddMember(ctx, h.ID, target.ID); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, nil, apperr.ErrMembershipConflict
		}
		return nil, nil, fmt.Errorf("add member: %w", err)
	}
	return target, h, nil
}
