package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/robfig/cron/v3"

	echoapi "github.com/trezcool/bursary/apps/api/echo"
	"github.com/trezcool/bursary/apps/shared"
	"github.com/trezcool/bursary/core"
	emailsvc "github.com/trezcool/bursary/services/email"
	logsvc "github.com/trezcool/bursary/services/logger"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.Conf

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB; migrations run before the server accepts requests
	stores, err := shared.OpenStores(context.Background(), conf, true /* migrate */)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = stores.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}
	svc := shared.NewServices(conf, stores, mailSvc, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q, database %q", conf.Build, conf.Database.Engine))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Jobs

	jobs := cron.New()
	if schedule := conf.Jobs.AuditSchedule; schedule != "" {
		if _, err = jobs.AddFunc(schedule, func() { svc.Auditor.RunAndLog(context.Background()) }); err != nil {
			logger.Fatal(fmt.Sprintf("scheduling balance audit %q: %v", schedule, err), err)
		}
	}
	jobs.Start()
	defer func() { <-jobs.Stop().Done() }()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(&echoapi.Options{
		Address: conf.Server.Address,
		Logger:  logger,
		Services: echoapi.Services{
			Users:         svc.Users,
			Courses:       svc.Courses,
			Fees:          svc.Fees,
			Ledger:        svc.Ledger,
			Enrollments:   svc.Enrollments,
			Payments:      svc.Payments,
			Penalties:     svc.Penalties,
			Notifications: svc.Notifications,
			Auditor:       svc.Auditor,
		},
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
