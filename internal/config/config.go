// internal/config/config.go
package config

import (
	"errors"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"quiz-practice/pkg/database"
)

type Config struct {
	Port   string
	AppEnv string

	Database  database.Config
	RedisAddr string
	JWTSecret string

	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LLMMaxAttempts uint

	GenerationMaxAttempts int
	GateOnValidation      bool

	AMQPURL      string
	AMQPExchange string

	SchedulerEnabled bool
	SchedulerSpec    string

	CORSOrigins []string
}

// Load reads an optional .env file, then the environment. The returned
// boolean reports whether a .env file was found.
func Load(envFiles ...string) (*Config, bool, error) {
	envLoaded := godotenv.Load(envFiles...) == nil

	v := newViper()
	cfg := &Config{
		Port:      v.GetString("PORT"),
		AppEnv:    v.GetString("APP_ENV"),
		Database:  databaseConfig(v),
		RedisAddr: v.GetString("REDIS_ADDR"),
		JWTSecret: v.GetString("JWT_SECRET"),

		LLMAPIKey:      v.GetString("LLM_API_KEY"),
		LLMBaseURL:     v.GetString("LLM_BASE_URL"),
		LLMModel:       v.GetString("LLM_MODEL"),
		LLMMaxAttempts: v.GetUint("LLM_MAX_ATTEMPTS"),

		GenerationMaxAttempts: v.GetInt("GENERATION_MAX_ATTEMPTS"),
		GateOnValidation:      v.GetBool("GATE_ON_VALIDATION"),

		AMQPURL:      v.GetString("AMQP_URL"),
		AMQPExchange: v.GetString("AMQP_EXCHANGE"),

		SchedulerEnabled: v.GetBool("SCHEDULER_ENABLED"),
		SchedulerSpec:    v.GetString("SCHEDULER_SPEC"),

		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
	}

	if err := cfg.validate(); err != nil {
		return nil, envLoaded, err
	}
	return cfg, envLoaded, nil
}

// LoadDatabase reads only the database settings, for tools that do not
// serve traffic.
func LoadDatabase(envFiles ...string) (database.Config, error) {
	_ = godotenv.Load(envFiles...)
	db := databaseConfig(newViper())
	if db.User == "" || db.DBName == "" {
		return db, errors.New("missing configuration: DB_USER/DB_NAME")
	}
	return db, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func databaseConfig(v *viper.Viper) database.Config {
	return database.Config{
		Host:     v.GetString("DB_HOST"),
		Port:     v.GetString("DB_PORT"),
		User:     v.GetString("DB_USER"),
		Password: v.GetString("DB_PASSWORD"),
		DBName:   v.GetString("DB_NAME"),
		SSLMode:  v.GetString("DB_SSLMODE"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("LLM_BASE_URL", "https://api.groq.com/openai/v1")
	v.SetDefault("LLM_MODEL", "llama-3.1-8b-instant")
	v.SetDefault("LLM_MAX_ATTEMPTS", 3)
	v.SetDefault("GENERATION_MAX_ATTEMPTS", 3)
	v.SetDefault("GATE_ON_VALIDATION", true)
	v.SetDefault("AMQP_EXCHANGE", "quiz.events")
	v.SetDefault("SCHEDULER_ENABLED", true)
	v.SetDefault("SCHEDULER_SPEC", "0 * * * * *")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
}

func (c *Config) validate() error {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.LLMAPIKey == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if c.Database.User == "" || c.Database.DBName == "" {
		missing = append(missing, "DB_USER/DB_NAME")
	}
	if len(missing) > 0 {
		return errors.New("missing configuration: " + strings.Join(missing, ", "))
	}
	if c.GenerationMaxAttempts < 1 {
		c.GenerationMaxAttempts = 1
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
