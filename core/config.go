package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var Conf *Config

func init() {
	Conf = NewConfig()
}

type (
	ServerConfig struct {
		Address                   string
		Host                      string
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
		ReqTimeout                time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
	}

	UploadsConfig struct {
		Dir      string // root of the uploads/ tree
		MaxBytes int64
	}

	JobsConfig struct {
		AuditSchedule string // cron spec, empty disables the job
	}

	FeesConfig struct {
		PaymentDueDays int
	}

	Config struct {
		Debug            bool
		TestMode         bool
		Env              string
		Build            string
		WorkDir          string
		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		RollbarToken     string
		SendgridAPIKey   string
		defaultFromEmail string

		Server   ServerConfig
		Database DatabaseConfig
		Uploads  UploadsConfig
		Jobs     JobsConfig
		Fees     FeesConfig
	}
)

// Address returns the "host:port" of the database server.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DefaultFromEmail parses the configured sender address, falling back to a bare address.
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	return *addr
}

// NewConfig reads the configuration from the environment.
// ENV selects the env prefix (DEV (local; default), TEST, QA, PROD); a matching config/.env.<env> file is
// loaded first when present.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Bursary")
	v.SetDefault("secretKey", "k1n9-c0d3)w7f$+21=ov&pqzd8(s!y)#*e4(#rt6^$lbmq3wq")
	v.SetDefault("defaultFromEmail", "Bursary <noreply@localhost>")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridAPIKey", "")

	v.SetDefault("server_address", ":8000")
	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_debugHost", ":4000")
	v.SetDefault("server_jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server_jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server_shutdownTimeout", 5*time.Second)
	v.SetDefault("server_reqTimeout", 30*time.Second)

	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", 5432)
	v.SetDefault("database_name", "bursary")
	v.SetDefault("database_user", "bursary")
	v.SetDefault("database_password", "")
	v.SetDefault("database_adminUser", "")
	v.SetDefault("database_adminPassword", "")
	v.SetDefault("database_disableTLS", true)
	v.SetDefault("database_maxOpenConns", 0)

	v.SetDefault("uploads_dir", "") // directory holding uploads/; defaults to WorkDir
	v.SetDefault("uploads_maxBytes", int64(10<<20))
	v.SetDefault("jobs_auditSchedule", "@daily")
	v.SetDefault("fees_paymentDueDays", 30)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("database_engine", "memory")
		v.SetDefault("jobs_auditSchedule", "")
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		Env:              env,
		Build:            v.GetString("build"),
		WorkDir:          wd,
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridAPIKey:   v.GetString("sendgridAPIKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Address:                   v.GetString("server_address"),
			Host:                      v.GetString("server_host"),
			DebugHost:                 v.GetString("server_debugHost"),
			JWTExpirationDelta:        v.GetDuration("server_jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server_jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("server_shutdownTimeout"),
			ReqTimeout:                v.GetDuration("server_reqTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database_engine"),
			Host:          v.GetString("database_host"),
			Port:          v.GetInt("database_port"),
			Name:          v.GetString("database_name"),
			User:          v.GetString("database_user"),
			Password:      v.GetString("database_password"),
			AdminUser:     v.GetString("database_adminUser"),
			AdminPassword: v.GetString("database_adminPassword"),
			DisableTLS:    v.GetBool("database_disableTLS"),
			MaxOpenConns:  v.GetInt("database_maxOpenConns"),
		},
		Uploads: UploadsConfig{
			Dir:      uploadsDir(v.GetString("uploads_dir"), wd),
			MaxBytes: v.GetInt64("uploads_maxBytes"),
		},
		Jobs: JobsConfig{
			AuditSchedule: v.GetString("jobs_auditSchedule"),
		},
		Fees: FeesConfig{
			PaymentDueDays: v.GetInt("fees_paymentDueDays"),
		},
	}
}

func uploadsDir(dir, wd string) string {
	if dir == "" {
		return wd
	}
	return dir
}
