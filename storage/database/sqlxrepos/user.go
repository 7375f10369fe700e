package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/clotrack/core/user"
)

const userColumns = `u.id, u.institution_id, u.name, u.email, u.is_active, u.roles, u.password_hash,
	u.created_at, u.updated_at, u.last_login,
	COALESCE(ARRAY(SELECT up.program_id::text FROM user_programs up WHERE up.user_id = u.id ORDER BY up.program_id), '{}') AS program_ids`

type userRow struct {
	ID            string         `db:"id"`
	InstitutionID string         `db:"institution_id"`
	Name          string         `db:"name"`
	Email         string         `db:"email"`
	IsActive      bool           `db:"is_active"`
	Roles         pq.StringArray `db:"roles"`
	ProgramIDs    pq.StringArray `db:"program_ids"`
	PasswordHash  []byte         `db:"password_hash"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	LastLogin     null.Time      `db:"last_login"`
}

func (row userRow) unboil() user.User {
	return user.User{
		ID:            row.ID,
		InstitutionID: row.InstitutionID,
		Name:          row.Name,
		Email:         row.Email,
		IsActive:      row.IsActive,
		Roles:         []string(row.Roles),
		ProgramIDs:    []string(row.ProgramIDs),
		PasswordHash:  row.PasswordHash,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
		LastLogin:     row.LastLogin.Time.UTC(),
	}
}

func unboilUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.unboil())
	}
	return users
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sql.DB) user.Repository {
	return &userRepository{db: sqlx.NewDb(db, "postgres")}
}

func trapUserNoRowsErr(err error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return err
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return user.User{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	q := `INSERT INTO users (id, institution_id, name, email, is_active, roles, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = tx.ExecContext(ctx, q, usr.ID, usr.InstitutionID, usr.Name, usr.Email, usr.IsActive,
		pq.StringArray(usr.Roles), usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == "23505" {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	for _, pid := range usr.ProgramIDs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO user_programs (user_id, program_id) VALUES ($1, $2)`, usr.ID, pid); err != nil {
			return user.User{}, errors.Wrap(err, "inserting user program")
		}
	}
	if err = tx.Commit(); err != nil {
		return user.User{}, errors.Wrap(err, "committing user")
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id); err != nil {
		return user.User{}, trapUserNoRowsErr(errors.Wrap(err, "selecting user"))
	}
	return row.unboil(), nil
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users u WHERE u.email = $1`, email); err != nil {
		return user.User{}, trapUserNoRowsErr(errors.Wrap(err, "selecting user"))
	}
	return row.unboil(), nil
}

func (repo *userRepository) GetUsersByID(ctx context.Context, ids ...string) ([]user.User, error) {
	if len(ids) == 0 {
		return []user.User{}, nil
	}
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	var rows []userRow
	q := `SELECT ` + userColumns + ` FROM users u WHERE u.id IN (` + strmangle.Placeholders(true, len(ids), 1, 1) + `)`
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	return unboilUsers(rows), nil
}

func (repo *userRepository) QueryProgramAdmins(ctx context.Context, programID string) ([]user.User, error) {
	var rows []userRow
	q := `SELECT ` + userColumns + `
		FROM users u
		JOIN user_programs p ON p.user_id = u.id
		WHERE p.program_id = $1 AND u.is_active AND $2 = ANY(u.roles)
		ORDER BY u.name`
	if err := repo.db.SelectContext(ctx, &rows, q, programID, user.RoleAdminProgram); err != nil {
		return nil, errors.Wrap(err, "selecting program admins")
	}
	return unboilUsers(rows), nil
}

func (repo *userRepository) SetPassword(ctx context.Context, id string, hash []byte) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	if err != nil {
		return errors.Wrap(err, "updating password")
	}
	return expectOneRow(res)
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return errors.Wrap(err, "updating last login")
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading affected rows")
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}
