// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yggdrasil Contributors

// Package config loads yggauth configuration. Values are layered in this
// order, later layers winning: built-in defaults, a YAML file, a .env file,
// process environment, then command-line flags.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/yggdrasil/yggauth/internal/auth"
	"github.com/yggdrasil/yggauth/internal/mail"
	"github.com/yggdrasil/yggauth/pkg/validate"
)

// Config is the complete yggauth configuration.
type Config struct {
	Database Database `koanf:"database"`
	Log      Log      `koanf:"log"`
	Hash     Hash     `koanf:"hash"`
	SMTP     SMTP     `koanf:"smtp"`
	Verify   Verify   `koanf:"verify"`
}

// Database configures the PostgreSQL pool.
type Database struct {
	URL            string `koanf:"url" validate:"required" jsonschema:"description=PostgreSQL connection URL. DATABASE_URL overrides it."`
	ConnectRetries uint64 `koanf:"connect_retries" validate:"lte=30" jsonschema:"description=Ping retries before giving up,maximum=30"`
	MaxConns       int32  `koanf:"max_conns" validate:"gte=0" jsonschema:"minimum=0"`
}

// Log configures the process logger.
type Log struct {
	Format string `koanf:"format" validate:"oneof=json text" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Hash selects the password hash strategy.
type Hash struct {
	Algorithm  string `koanf:"algorithm" validate:"oneof=argon2id bcrypt" jsonschema:"enum=argon2id,enum=bcrypt"`
	BcryptCost int    `koanf:"bcrypt_cost" validate:"gte=4,lte=31" jsonschema:"minimum=4,maximum=31"`
	Argon2     Argon2 `koanf:"argon2"`
}

// Argon2 tunes the argon2id strategy.
type Argon2 struct {
	Time      uint32 `koanf:"time" validate:"gte=1,lte=64" jsonschema:"minimum=1,maximum=64"`
	MemoryKiB uint32 `koanf:"memory_kib" validate:"gte=8,lte=4194304" jsonschema:"minimum=8,maximum=4194304"`
	Threads   uint8  `koanf:"threads" validate:"gte=1" jsonschema:"minimum=1"`
}

// SMTP configures mail delivery. An empty host writes messages to stdout.
type SMTP struct {
	Host        string        `koanf:"host" validate:"omitempty,hostname|ip"`
	Port        int           `koanf:"port" validate:"gte=0,lte=65535" jsonschema:"minimum=0,maximum=65535"`
	Username    string        `koanf:"username"`
	Password    string        `koanf:"password" jsonschema:"description=Prefer SMTP_PASSWORD."`
	From        string        `koanf:"from" validate:"required"`
	DialTimeout time.Duration `koanf:"dial_timeout" validate:"gte=0"`
}

// Verify configures verification messages and codes.
type Verify struct {
	ServiceName string        `koanf:"service_name" validate:"required"`
	Subject     string        `koanf:"subject"`
	Body        string        `koanf:"body"`
	ContentType string        `koanf:"content_type" validate:"required"`
	CodeLength  int           `koanf:"code_length" validate:"gte=1,lte=32" jsonschema:"minimum=1,maximum=32"`
	CodeTTL     time.Duration `koanf:"code_ttl" validate:"gte=0" jsonschema:"description=Zero disables expiry."`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: Database{ConnectRetries: 5},
		Log:      Log{Format: "json", Level: "info"},
		Hash: Hash{
			Algorithm:  auth.AlgorithmArgon2id,
			BcryptCost: 10,
			Argon2:     Argon2{Time: auth.DefaultArgon2Time, MemoryKiB: auth.DefaultArgon2Memory, Threads: auth.DefaultArgon2Threads},
		},
		SMTP: SMTP{Port: 587, From: "noreply@localhost", DialTimeout: 10 * time.Second},
		Verify: Verify{
			ServiceName: "Yggdrasil",
			ContentType: "text/plain; charset=UTF-8",
			CodeLength:  auth.DefaultCodeLength,
		},
	}
}

// envKeys maps environment variables to configuration keys.
var envKeys = map[string]string{
	"DATABASE_URL":      "database.url",
	"SMTP_HOST":         "smtp.host",
	"SMTP_USERNAME":     "smtp.username",
	"SMTP_PASSWORD":     "smtp.password",
	"SMTP_FROM":         "smtp.from",
	"YGGAUTH_LOG_LEVEL": "log.level",
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"database-url":   "database.url",
	"log-format":     "log.format",
	"log-level":      "log.level",
	"hash-algorithm": "hash.algorithm",
	"smtp-host":      "smtp.host",
	"smtp-port":      "smtp.port",
	"smtp-from":      "smtp.from",
	"service-name":   "verify.service_name",
	"code-length":    "verify.code_length",
	"code-ttl":       "verify.code_ttl",
}

// Sources names where Load reads from. Empty paths are skipped; Flags may
// be nil.
type Sources struct {
	File    string
	EnvFile string
	Flags   *pflag.FlagSet
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// BindFlags registers the configuration override flags.
func BindFlags(flags *pflag.FlagSet) {
	flags.String("database-url", "", "PostgreSQL connection URL")
	flags.String("log-format", "", "log format (json|text)")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	flags.String("hash-algorithm", "", "password hash algorithm (argon2id|bcrypt)")
	flags.String("smtp-host", "", "SMTP relay host; empty prints messages to stdout")
	flags.Int("smtp-port", 0, "SMTP relay port")
	flags.String("smtp-from", "", "sender address of verification messages")
	flags.String("service-name", "", "service name shown in verification messages")
	flags.Int("code-length", 0, "generated verification code length")
	flags.Duration("code-ttl", 0, "verification code lifetime; 0 disables expiry")
}

// Load layers src over Default and validates the result.
func Load(src Sources) (*Config, error) {
	k := koanf.New(".")

	if src.File != "" {
		if err := k.Load(file.Provider(src.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("file", src.File).
				Wrap(err)
		}
	}

	if err := loadEnv(k, src); err != nil {
		return nil, err
	}

	if src.Flags != nil {
		provider := posflag.ProviderWithFlag(src.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnv(k *koanf.Koanf, src Sources) error {
	dotenv := map[string]string{}
	if src.EnvFile != "" {
		m, err := godotenv.Read(src.EnvFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return oops.Code("CONFIG_LOAD_FAILED").With("file", src.EnvFile).Wrap(err)
		default:
			dotenv = m
		}
	}

	lookup := src.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for name, key := range envKeys {
		v, ok := lookup(name)
		if !ok {
			v, ok = dotenv[name]
		}
		if ok && v != "" {
			if err := k.Set(key, v); err != nil {
				return oops.Code("CONFIG_LOAD_FAILED").With("env", name).Wrap(err)
			}
		}
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if _, err := mail.ParseAddress("smtp.from", c.SMTP.From); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return nil
}

// HasherConfig converts the hash section for auth.NewHasher.
func (c *Config) HasherConfig() auth.HasherConfig {
	return auth.HasherConfig{
		Algorithm:     c.Hash.Algorithm,
		BcryptCost:    c.Hash.BcryptCost,
		Argon2Time:    c.Hash.Argon2.Time,
		Argon2Memory:  c.Hash.Argon2.MemoryKiB,
		Argon2Threads: c.Hash.Argon2.Threads,
	}
}

// SMTPConfig converts the smtp section for mail.NewSMTPSender.
func (c *Config) SMTPConfig() mail.SMTPConfig {
	return mail.SMTPConfig{
		Host:        c.SMTP.Host,
		Port:        c.SMTP.Port,
		Username:    c.SMTP.Username,
		Password:    c.SMTP.Password,
		DialTimeout: c.SMTP.DialTimeout,
	}
}
