package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DatabaseURL string // SVCB_DATABASE_URL (required)
	GRPCAddr    string // SVCB_GRPC_ADDR (default ":9090")
	HTTPAddr    string // SVCB_HTTP_ADDR (default ":8080")
	NATSURL     string // SVCB_NATS_URL (optional, empty = no events)
	AuthToken   string // SVCB_AUTH_TOKEN (optional, empty = auth disabled)
	ConfigFile  string // SVCB_CONFIG_FILE (optional TOML file, see File)

	// Export settings
	ExportInterval   time.Duration // SVCB_EXPORT_INTERVAL (default 15m; 0 = disabled)
	ExportS3Bucket   string        // SVCB_EXPORT_S3_BUCKET (enables export when set)
	ExportS3Endpoint string        // SVCB_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string        // SVCB_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Key      string        // SVCB_EXPORT_S3_KEY (default "svcbackup/services.jsonl"; "{time}" expands per run)

	// Plugins holds per-plugin default config read from ConfigFile.
	Plugins map[string]map[string]any
}

// File is the layout of SVCB_CONFIG_FILE:
//
//	[plugins.Webhook]
//	url = "https://provisioner.internal/hooks"
//	max_retries = 5
type File struct {
	Plugins map[string]map[string]any `toml:"plugins"`
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:      os.Getenv("SVCB_DATABASE_URL"),
		GRPCAddr:         envOrDefault("SVCB_GRPC_ADDR", ":9090"),
		HTTPAddr:         envOrDefault("SVCB_HTTP_ADDR", ":8080"),
		NATSURL:          os.Getenv("SVCB_NATS_URL"),
		AuthToken:        os.Getenv("SVCB_AUTH_TOKEN"),
		ConfigFile:       os.Getenv("SVCB_CONFIG_FILE"),
		ExportS3Bucket:   os.Getenv("SVCB_EXPORT_S3_BUCKET"),
		ExportS3Endpoint: os.Getenv("SVCB_EXPORT_S3_ENDPOINT"),
		ExportS3Region:   envOrDefault("SVCB_EXPORT_S3_REGION", "us-east-1"),
		ExportS3Key:      envOrDefault("SVCB_EXPORT_S3_KEY", "svcbackup/services.jsonl"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("SVCB_DATABASE_URL is required")
	}

	intervalStr := envOrDefault("SVCB_EXPORT_INTERVAL", "15m")
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("SVCB_EXPORT_INTERVAL: %w", err)
		}
		c.ExportInterval = d
	}

	if c.ConfigFile != "" {
		f, err := LoadFile(c.ConfigFile)
		if err != nil {
			return nil, err
		}
		c.Plugins = f.Plugins
	}
	if c.Plugins == nil {
		c.Plugins = map[string]map[string]any{}
	}

	return c, nil
}

// LoadFile decodes a TOML config file.
func LoadFile(path string) (*File, error) {
	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("SVCB_CONFIG_FILE: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("SVCB_CONFIG_FILE: unknown key %q", undecoded[0].String())
	}
	return &f, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
