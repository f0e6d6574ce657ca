package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/user"
	"github.com/trezcool/bursary/storage/database"
)

const userColumns = `id, name, username, email, is_active, roles, faculty_id, has_bus_service, password_hash,
	created_at, updated_at, last_login`

var userOrderings = map[string]string{
	"name":       "name",
	"username":   "username",
	"email":      "email",
	"created_at": "created_at",
	"last_login": "last_login",
}

type userRow struct {
	ID            string         `db:"id"`
	Name          null.String    `db:"name"`
	Username      null.String    `db:"username"`
	Email         null.String    `db:"email"`
	IsActive      bool           `db:"is_active"`
	Roles         pq.StringArray `db:"roles"`
	FacultyID     null.String    `db:"faculty_id"`
	HasBusService bool           `db:"has_bus_service"`
	PasswordHash  []byte         `db:"password_hash"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	LastLogin     null.Time      `db:"last_login"`
}

func toUserRow(u user.User) userRow {
	return userRow{
		ID:            u.ID,
		Name:          nullString(u.Name),
		Username:      nullString(u.Username),
		Email:         nullString(u.Email),
		IsActive:      u.IsActive,
		Roles:         pq.StringArray(u.Roles),
		FacultyID:     nullString(u.FacultyID),
		HasBusService: u.HasBusService,
		PasswordHash:  u.PasswordHash,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
		LastLogin:     null.NewTime(u.LastLogin, !u.LastLogin.IsZero()),
	}
}

func (r userRow) toUser() user.User {
	roles := []string(r.Roles)
	if roles == nil {
		roles = []string{}
	}
	return user.User{
		ID:            r.ID,
		Name:          r.Name.String,
		Username:      r.Username.String,
		Email:         r.Email.String,
		IsActive:      r.IsActive,
		Roles:         roles,
		FacultyID:     r.FacultyID.String,
		HasBusService: r.HasBusService,
		PasswordHash:  r.PasswordHash,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		LastLogin:     r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	repo
}

func NewUserRepository(db *database.DB) user.Repository {
	return &userRepository{repo{db: db}}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error {
	if excludedIDs == nil {
		excludedIDs = []string{}
	}
	var taken []struct {
		Username null.String `db:"username"`
		Email    null.String `db:"email"`
	}
	q := `SELECT username, email FROM users
		WHERE ((username = $1 AND $1 <> '') OR (email = $2 AND $2 <> '')) AND NOT (id::text = ANY($3))`
	if err := sqlx.SelectContext(ctx, repo.ext(ctx), &taken, q, username, email, pq.StringArray(excludedIDs)); err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	for _, t := range taken {
		if username != "" && t.Username.String == username {
			return user.ErrUsernameExists
		}
	}
	if len(taken) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func mapUserErr(err error) error {
	switch code, constraint := pqCode(err); {
	case code == codeUniqueViolation && strings.Contains(constraint, "username"):
		return user.ErrUsernameExists
	case code == codeUniqueViolation && strings.Contains(constraint, "email"):
		return user.ErrEmailExists
	}
	return err
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = newID()
	q := `INSERT INTO users (` + userColumns + `) VALUES (:id, :name, :username, :email, :is_active, :roles,
		:faculty_id, :has_bus_service, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, toUserRow(usr)); err != nil {
		return user.User{}, mapUserErr(err)
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			w.add("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", "%"+filter.Search+"%")
		}
		if len(filter.Roles) > 0 {
			prefixes := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				prefixes = append(prefixes, role+"%")
			}
			w.add("EXISTS (SELECT 1 FROM unnest(roles) r WHERE r LIKE ANY(?))", pq.StringArray(prefixes))
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if filter.FacultyID != "" {
			w.add("faculty_id::text = ?", filter.FacultyID)
		}
	}

	orderBy := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if col, ok := userOrderings[ord.Field]; ok {
			orderBy = append(orderBy, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	orderBy = append(orderBy, "created_at ASC")

	var rows []userRow
	q := "SELECT " + userColumns + " FROM users" + w.String() + " ORDER BY " + strings.Join(orderBy, ", ")
	if err := sqlx.SelectContext(ctx, repo.ext(ctx), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var w where
	switch {
	case filter.ID != "":
		w.add("id::text = ?", filter.ID)
	case filter.Username != "":
		w.add("username = ?", filter.Username)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	case filter.UsernameOrEmail != "":
		w.add("? IN (username, email)", filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := "SELECT " + userColumns + " FROM users" + w.String() + " LIMIT 1"
	if err := sqlx.GetContext(ctx, repo.ext(ctx), &row, q, w.args...); err != nil {
		return user.User{}, notFound(err, user.ErrNotFound)
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE users SET name = :name, username = :username, email = :email, is_active = :is_active,
		roles = :roles, faculty_id = :faculty_id, has_bus_service = :has_bus_service, password_hash = :password_hash,
		updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, toUserRow(usr))
	if err != nil {
		return user.User{}, notFound(mapUserErr(err), user.ErrNotFound)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}
