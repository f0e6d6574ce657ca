package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/user"
)

type userRepository struct {
	db *DB
}

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...string) (err error) {
	repo.db.read(ctx, func() {
		for _, usr := range repo.db.users {
			if isExcluded(usr.ID, excludedIDs) {
				continue
			}
			if username != "" && usr.Username == username {
				err = user.ErrUsernameExists
				return
			}
			if email != "" && usr.Email == email {
				err = user.ErrEmailExists
				return
			}
		}
	})
	return err
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := repo.db.write(ctx, func() error {
		usr.ID = newID()
		repo.db.users = append(repo.db.users, usr)
		return nil
	})
	return usr, err
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	users := make([]user.User, 0)
	repo.db.read(ctx, func() {
		for _, usr := range repo.db.users {
			if matchUser(usr, filter) {
				users = append(users, usr)
			}
		}
	})

	for i := len(ordering) - 1; i >= 0; i-- {
		ord := ordering[i]
		sort.SliceStable(users, func(i, j int) bool {
			less, greater := compareUsers(users[i], users[j], ord.Field)
			if ord.Ascending {
				return less
			}
			return greater
		})
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (usr user.User, err error) {
	err = user.ErrNotFound
	repo.db.read(ctx, func() {
		for _, u := range repo.db.users {
			if (filter.ID != "" && u.ID == filter.ID) ||
				(filter.Username != "" && u.Username == filter.Username) ||
				(filter.Email != "" && u.Email == filter.Email) ||
				(filter.UsernameOrEmail != "" && (u.Username == filter.UsernameOrEmail || u.Email == filter.UsernameOrEmail)) {
				usr, err = u, nil
				return
			}
		}
	})
	return usr, err
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := repo.db.write(ctx, func() error {
		for i, u := range repo.db.users {
			if u.ID == usr.ID {
				usr.CreatedAt = u.CreatedAt
				repo.db.users[i] = usr
				return nil
			}
		}
		return user.ErrNotFound
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(usr.Name), search) &&
			!strings.Contains(usr.Username, search) &&
			!strings.Contains(usr.Email, search) {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		found := false
		for _, role := range filter.Roles {
			found = found || usr.RoleStartsWith(role)
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if filter.FacultyID != "" && usr.FacultyID != filter.FacultyID {
		return false
	}
	return true
}

func compareUsers(a, b user.User, field string) (less, greater bool) {
	switch field {
	case "name":
		return a.Name < b.Name, a.Name > b.Name
	case "username":
		return a.Username < b.Username, a.Username > b.Username
	case "email":
		return a.Email < b.Email, a.Email > b.Email
	default:
		return a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.After(b.CreatedAt)
	}
}

func isExcluded(id string, excludedIDs []string) bool {
	for _, excl := range excludedIDs {
		if excl == id {
			return true
		}
	}
	return false
}
