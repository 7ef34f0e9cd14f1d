package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"matchroom-service/internal/models"
)

// MembershipRepo reads teams, members and users owned by the account service.
type MembershipRepo struct {
	db *sqlx.DB
}

// NewMembershipRepo constructs a MembershipRepo.
func NewMembershipRepo(db *sqlx.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

// IsMember checks membership.
func (r *MembershipRepo) IsMember(ctx context.Context, teamID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM team_members WHERE team_id=$1 AND user_id=$2)`, teamID, userID)
	return exists, err
}

// GetTeam fetches a single team.
func (r *MembershipRepo) GetTeam(ctx context.Context, teamID int) (models.Team, error) {
	var team models.Team
	err := r.db.GetContext(ctx, &team, `SELECT id, name FROM teams WHERE id=$1`, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Team{}, ErrTeamNotFound
	}
	return team, err
}

// UserNames resolves full names; unknown ids are absent from the result.
func (r *MembershipRepo) UserNames(ctx context.Context, userIDs []int) (map[int]string, error) {
	names := map[int]string{}
	if len(userIDs) == 0 {
		return names, nil
	}

	query, args, err := sqlx.In(`SELECT id, full_name FROM users WHERE id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, u := range users {
		names[u.ID] = u.FullName
	}
	return names, nil
}
