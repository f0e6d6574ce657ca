package main

import (
	"errors"

	"github.com/trezcool/bursary/storage/database"
)

var (
	gooseRunFunc = runMigrations // mockable

	errNoSQLDatabase = errors.New("migrations need the postgres database engine")
)

func runMigrations(db *database.DB, command string, args ...string) error {
	if db == nil {
		return errNoSQLDatabase
	}
	return database.Migrate(db, command, args...)
}

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(cli.stores.DB, args[0], args[1:]...)
}
