package internal

import (
	"fmt"
	"proctor/domain"
	"proctor/infrastructure/web"
	"time"
)

type Config struct {
	Host              string        `env:"HOST,default=0.0.0.0"`
	Port              int           `env:"PORT,default=8765"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	ExamRulesFile     string        `env:"EXAM_RULES_FILE"`
	AutoEscalation    bool          `env:"AUTO_ESCALATION,default=true"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT,default=5s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=2s"`
	StatsInterval     time.Duration `env:"STATS_INTERVAL,default=30s"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=8h"`
	OperatorUsername  string        `env:"OPERATOR_USERNAME"`
	OperatorPassword  string        `env:"OPERATOR_PASSWORD"`

	DebugEnabled bool `env:"DEBUG_ENABLED,default=false"`
	DebugPort    int  `env:"DEBUG_PORT,default=8081"`
}

// Validate catches combinations the env tags cannot express.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if len(c.AuthSecret) < 16 {
		return fmt.Errorf("AUTH_SECRET must be at least 16 characters")
	}
	if (c.OperatorUsername == "") != (c.OperatorPassword == "") {
		return fmt.Errorf("OPERATOR_USERNAME and OPERATOR_PASSWORD must be set together")
	}
	if c.DebugEnabled && c.DebugPort == c.Port {
		return fmt.Errorf("DEBUG_PORT must differ from PORT")
	}
	return nil
}

func (c Config) Web() web.Config {
	return web.Config{
		Host:              c.Host,
		Port:              c.Port,
		WriteTimeout:      c.WriteTimeout,
		ReadHeaderTimeout: c.ReadHeaderTimeout,
		ShutdownTimeout:   c.ShutdownTimeout,
	}
}

// ExamRules loads EXAM_RULES_FILE, or the defaults when it is unset.
func (c Config) ExamRules() (domain.ExamRules, error) {
	return domain.LoadExamRules(c.ExamRulesFile)
}
