package main

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/user"
)

var errInvalidEmail = errors.New("invalid email address")

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if err := core.Validate.Var(email, "email"); err != nil {
		return errInvalidEmail
	}

	roles := []string{user.RoleStudent}
	if isAdmin {
		roles = []string{user.RoleAdminOwner}
	}

	usr, err := cli.svc.Users.GetByUsernameOrEmail(ctx, uname)
	if err == user.ErrNotFound {
		usr, err = cli.svc.Users.GetByUsernameOrEmail(ctx, email)
	}
	switch err {
	case nil:
		if name != "" {
			usr.Name = core.CleanString(name)
		}
		usr.Roles = roles
		usr.IsActive = true
		if _, err = cli.svc.Users.SetPassword(ctx, usr, pwd); err != nil {
			return err
		}
		cli.printf("updated user %q\n", usr.Username)
		return nil

	case user.ErrNotFound:
		now := time.Now().UTC()
		usr = user.User{
			Name:      core.CleanString(name),
			Username:  uname,
			Email:     email,
			IsActive:  true,
			Roles:     roles,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err = cli.stores.Users.CheckUniqueness(ctx, usr.Username, usr.Email); err != nil {
			return err
		}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		if _, err = cli.stores.Users.CreateUser(ctx, usr); err != nil {
			return err
		}
		cli.printf("created user %q\n", usr.Username)
		return nil

	default:
		return err
	}
}

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.svc.Users.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	_, err = cli.svc.Users.SetPassword(ctx, usr, pwd)
	return err
}
