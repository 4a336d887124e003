// Package config provides functionality for managing configuration options
// for the application using a .env file, command-line flags, an optional
// JSON config file and environment variables, applied in that order.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Blob backends.
const (
	BlobFS = "fs"
	BlobS3 = "s3"
)

// Duration is a time.Duration that reads "90s"-style strings or a plain
// number of seconds from JSON.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		d.Duration = time.Duration(val * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// Options holds the configuration values for the application.
type Options struct {
	// Address defines the server's listening address (ip:port).
	Address string `json:"address"`

	// DatabaseDSN is the PostgreSQL connection string. Empty selects the
	// in-memory repository.
	DatabaseDSN string `json:"database_dsn"`

	// BlobBackend selects where file payloads live: "fs" or "s3".
	BlobBackend string `json:"blob_backend"`
	// UploadDir is the directory used by the fs backend.
	UploadDir string `json:"upload_dir"`

	S3Bucket    string `json:"s3_bucket"`
	S3Region    string `json:"s3_region"`
	S3Endpoint  string `json:"s3_endpoint"`
	S3AccessKey string `json:"s3_access_key"`
	S3SecretKey string `json:"s3_secret_key"`

	// JWTSecret verifies bearer tokens. Empty disables credential resolution.
	JWTSecret string `json:"jwt_secret"`

	// PublicBaseURL prefixes the shareable link returned on deposit.
	PublicBaseURL string `json:"public_base_url"`

	// SweepInterval is the period of the retention sweeper.
	SweepInterval Duration `json:"sweep_interval"`
	// StorageTimeout bounds every blob store call made by the sweeper.
	StorageTimeout Duration `json:"storage_timeout"`

	LogLevel string `json:"log_level"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// Parse loads .env, parses the command-line flags and applies the config
// file and environment variables. It exits the process on invalid input.
func Parse() *Options {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: loading .env: %v", err)
	}

	opts, err := load(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return opts
}

func load(fs *flag.FlagSet, args []string, getenv func(string) string) (*Options, error) {
	o := &Options{}

	fs.StringVar(&o.Address, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&o.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&o.BlobBackend, "blob", BlobFS, "blob backend: fs or s3")
	fs.StringVar(&o.UploadDir, "uploads", "uploads", "upload directory for the fs backend")
	fs.StringVar(&o.S3Bucket, "s3-bucket", "", "s3 bucket")
	fs.StringVar(&o.S3Region, "s3-region", "us-east-1", "s3 region")
	fs.StringVar(&o.S3Endpoint, "s3-endpoint", "", "s3 endpoint for non-AWS stores")
	fs.StringVar(&o.PublicBaseURL, "base-url", "http://localhost:8080", "public base url for share links")
	fs.DurationVar(&o.SweepInterval.Duration, "sweep", time.Minute, "retention sweep interval")
	fs.DurationVar(&o.StorageTimeout.Duration, "storage-timeout", 10*time.Second, "timeout per blob store call")
	fs.StringVar(&o.LogLevel, "l", "info", "log level")
	fs.StringVar(&o.TLSCert, "tls-cert", "", "TLS certificate file")
	fs.StringVar(&o.TLSKey, "tls-key", "", "TLS key file")
	fs.StringVar(&o.Config, "config", "config.json", "path to config file")
	fs.StringVar(&o.Config, "c", "config.json", "path to config file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath := getenv("CONFIG"); configPath != "" {
		o.Config = configPath
	}

	if o.Config != "" {
		if _, err := os.Stat(o.Config); err == nil {
			data, err := os.ReadFile(o.Config)
			if err != nil {
				return nil, fmt.Errorf("error while reading config file: %w", err)
			}
			if err := json.Unmarshal(data, o); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	strEnv := map[string]*string{
		"SERVER_ADDRESS":  &o.Address,
		"DATABASE_DSN":    &o.DatabaseDSN,
		"BLOB_BACKEND":    &o.BlobBackend,
		"UPLOAD_DIR":      &o.UploadDir,
		"S3_BUCKET":       &o.S3Bucket,
		"S3_REGION":       &o.S3Region,
		"S3_ENDPOINT":     &o.S3Endpoint,
		"S3_ACCESS_KEY":   &o.S3AccessKey,
		"S3_SECRET_KEY":   &o.S3SecretKey,
		"JWT_SECRET":      &o.JWTSecret,
		"PUBLIC_BASE_URL": &o.PublicBaseURL,
		"LOG_LEVEL":       &o.LogLevel,
		"TLS_CERT":        &o.TLSCert,
		"TLS_KEY":         &o.TLSKey,
	}
	for name, dst := range strEnv {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}

	durEnv := map[string]*time.Duration{
		"SWEEP_INTERVAL":  &o.SweepInterval.Duration,
		"STORAGE_TIMEOUT": &o.StorageTimeout.Duration,
	}
	for name, dst := range durEnv {
		if v := getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
	}

	o.PublicBaseURL = strings.TrimRight(o.PublicBaseURL, "/")
	return o, o.validate()
}

func (o *Options) validate() error {
	switch o.BlobBackend {
	case BlobFS:
		if o.UploadDir == "" {
			return errors.New("upload dir is required for the fs backend")
		}
	case BlobS3:
		if o.S3Bucket == "" {
			return errors.New("s3 bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown blob backend %q", o.BlobBackend)
	}
	if o.SweepInterval.Duration <= 0 {
		return errors.New("sweep interval must be positive")
	}
	if o.StorageTimeout.Duration <= 0 {
		return errors.New("storage timeout must be positive")
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		return errors.New("tls cert and key must be set together")
	}
	return nil
}
