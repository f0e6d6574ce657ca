package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/bursary/core"
	"github.com/trezcool/bursary/core/audit"
	"github.com/trezcool/bursary/core/course"
	"github.com/trezcool/bursary/core/enrollment"
	"github.com/trezcool/bursary/core/fee"
	"github.com/trezcool/bursary/core/ledger"
	"github.com/trezcool/bursary/core/notification"
	"github.com/trezcool/bursary/core/payment"
	"github.com/trezcool/bursary/core/penalty"
	"github.com/trezcool/bursary/core/user"
)

type (
	// Services are the use cases served over HTTP.
	Services struct {
		Users         *user.Service
		Courses       *course.Service
		Fees          *fee.Service
		Ledger        *ledger.Service
		Enrollments   *enrollment.Service
		Payments      *payment.Service
		Penalties     *penalty.Service
		Notifications *notification.Service
		Auditor       *audit.Auditor
	}

	Options struct {
		Address        string
		DisableReqLogs bool
		Logger         core.Logger
		Services       Services
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(ctx context.Context) error
		Close() error
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:     opts,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	debug := core.Conf.Debug

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Server.ReadTimeout = core.Conf.Server.ReqTimeout
	s.app.Server.WriteTimeout = core.Conf.Server.ReqTimeout

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.signalShutdown)
	s.app.Debug = debug

	s.app.GET("/", home)

	svc := s.opts.Services
	api := s.app.Group("/api", authMiddleware(svc.Users))

	registerAuthAPI(api, svc.Users)
	registerUserAPI(api, svc.Users)
	registerCourseAPI(api, svc.Courses)
	registerStudentAPI(api, svc)
	registerFinanceAPI(api, svc)
}

func (s *server) Start() {
	if err := s.app.Start(s.opts.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+core.Conf.AppName+" API!")
}
