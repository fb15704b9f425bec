package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/flatmate/internal/model"
)

type HouseStore struct {
	db *sql.DB
}

func NewHouseStore(db *sql.DB) *HouseStore {
	return &HouseStore{db: db}
}

func scanHouse(scanner interface{ Scan(...any) error }) (*model.House, error) {
	var h model.House
	var description sql.NullString
	err := scanner.Scan(&h.ID, &h.Name, &description, &h.CreatorID, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	h.Description = stringPtr(description)
	return &h, nil
}

func scanMembership(scanner interface{ Scan(...any) error }) (*model.HouseMembership, error) {
	var m model.HouseMembership
	err := scanner.Scan(&m.ID, &m.HouseID, &m.UserID, &m.JoinedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const houseCols = `id, name, description, creator_id, created_at, updated_at`
const membershipCols = `id, house_id, user_id, joined_at`

// Create inserts a house owned by creatorID. No membership row is written
// for the creator.
func (s *HouseStore) Create(ctx context.Context, name string, description *string, creatorID int64) (*model.House, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO houses (name, description, creator_id) VALUES (?, ?, ?)`,
		name, nullString(description), creatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert house: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *HouseStore) GetByID(ctx context.Context, id int64) (*model.House, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+houseCols+` FROM houses WHERE id = ?`, id)
	h, err := scanHouse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get house: %w", err)
	}
	return h, nil
}

// AddMember inserts a membership row. The (house_id, user_id) unique index
// is the source of truth; a violation is reported as ErrDuplicate.
func (s *HouseStore) AddMember(ctx context.Context, houseID, userID int64) (*model.HouseMembership, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO house_members (house_id, user_id) VALUES (?, ?)`,
		houseID, userID,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+membershipCols+` FROM house_members WHERE id = ?`, id)
	m, err := scanMembership(row)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *HouseStore) RemoveMember(ctx context.Context, houseID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM house_members WHERE house_id = ? AND user_id = ?`,
		houseID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (s *HouseStore) GetMember(ctx context.Context, houseID, userID int64) (*model.HouseMembership, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+membershipCols+` FROM house_members WHERE house_id = ? AND user_id = ?`,
		houseID, userID,
	)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// ListForUser returns every house userID created or belongs to, with the
// member count including the creator.
func (s *HouseStore) ListForUser(ctx context.Context, userID int64) ([]model.HouseSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT h.id, h.name, h.description, h.creator_id, h.created_at,
		        (SELECT COUNT(*) FROM house_members m WHERE m.house_id = h.id) + 1
		 FROM houses h
		 WHERE h.creator_id = ?
		    OR h.id IN (SELECT house_id FROM house_members WHERE user_id = ?)
		 ORDER BY h.id ASC`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list houses for user: %w", err)
	}
	defer rows.Close()

	var houses []model.HouseSummary
	for rows.Next() {
		var h model.HouseSummary
		var description sql.NullString
		var creatorID int64
		if err := rows.Scan(&h.ID, &h.Name, &description, &creatorID, &h.CreatedAt, &h.MembersCount); err != nil {
			return nil, fmt.Errorf("scan house: %w", err)
		}
		h.Description = stringPtr(description)
		h.IsCreator = creatorID == userID
		houses = append(houses, h)
	}
	return houses, rows.Err()
}

// ListMembers returns the creator followed by members in join order.
func (s *HouseStore) ListMembers(ctx context.Context, house *model.House) ([]model.HouseMember, error) {
	members := make([]model.HouseMember, 0, 1)

	creator := model.HouseMember{IsCreator: true, JoinedAt: house.CreatedAt}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email FROM users WHERE id = ?`, house.CreatorID,
	).Scan(&creator.UserID, &creator.Name, &creator.Email)
	if err != nil {
		return nil, fmt.Errorf("get creator: %w", err)
	}
	members = append(members, creator)

	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.name, u.email, m.joined_at
		 FROM house_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.house_id = ?
		 ORDER BY m.joined_at ASC, m.id ASC`,
		house.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m model.HouseMember
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// AudienceIDs returns the creator and member user IDs of a house.
func (s *HouseStore) AudienceIDs(ctx context.Context, houseID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT creator_id FROM houses WHERE id = ?
		 UNION
		 SELECT user_id FROM house_members WHERE house_id = ?`,
		houseID, houseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audience: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan audience: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteCascade removes a house's tasks, its memberships and the house
// itself in one transaction. Nothing is removed unless all three succeed.
func (s *HouseStore) DeleteCascade(ctx context.Context, houseID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE house_id = ?`, houseID); err != nil {
		return fmt.Errorf("delete house tasks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM house_members WHERE house_id = ?`, houseID); err != nil {
		return fmt.Errorf("delete house members: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM houses WHERE id = ?`, houseID); err != nil {
		return fmt.Errorf("delete house: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
