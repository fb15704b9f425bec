package model

import "time"

type House struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatorID   int64     `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HouseMembership marks a non-creator user as part of a house.
type HouseMembership struct {
	ID       int64     `json:"id"`
	HouseID  int64     `json:"house_id"`
	UserID   int64     `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// HouseSummary is a house as seen by one user.
type HouseSummary struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	MembersCount int       `json:"members_count"`
	CreatedAt    time.Time `json:"created_at"`
	IsCreator    bool      `json:"is_creator"`
}

// HouseMember is a row of a house's member listing. The creator has no
// membership row, so JoinedAt is the house creation time for them.
type HouseMember struct {
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsCreator bool      `json:"is_creator"`
	JoinedAt  time.Time `json:"joined_at"`
}
