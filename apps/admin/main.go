package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/bursary/apps/shared"
	"github.com/trezcool/bursary/core"
	emailsvc "github.com/trezcool/bursary/services/email"
	logsvc "github.com/trezcool/bursary/services/logger"
)

func main() {
	conf := core.Conf
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	// migrations are an explicit command here
	stores, err := shared.OpenStores(context.Background(), conf, false /* migrate */)
	if err != nil {
		logger.Fatal("setting up database", err)
	}

	cli := newCommandLine(stores, shared.NewServices(conf, stores, emailsvc.NewConsoleService(logger), logger))
	err = cli.run(os.Args)
	if cerr := stores.Close(); cerr != nil {
		logger.Error("closing database", cerr)
	}
	if err != nil && err != errHelp {
		logger.Error(err.Error(), err)
	}
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}
