package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	MinIO      MinIOConfig      `yaml:"minio"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type RecognizerConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	// MatchThreshold is the cosine-similarity operating point; a gallery
	// identity matches only when similarity strictly exceeds it.
	MatchThreshold float64 `yaml:"match_threshold"`
	// PrimaryFacePolicy selects the probe face when the detector returns
	// more than one: first, largest, confidence, or single (reject).
	PrimaryFacePolicy string        `yaml:"primary_face_policy"`
	InitTimeout       time.Duration `yaml:"init_timeout"`
	EmbeddingDim      int           `yaml:"embedding_dim"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Recognizer.DetectionThreshold == 0 {
		cfg.Recognizer.DetectionThreshold = 0.5
	}
	if cfg.Recognizer.MatchThreshold == 0 {
		cfg.Recognizer.MatchThreshold = 0.4
	}
	if cfg.Recognizer.PrimaryFacePolicy == "" {
		cfg.Recognizer.PrimaryFacePolicy = "first"
	}
	if cfg.Recognizer.InitTimeout == 0 {
		cfg.Recognizer.InitTimeout = 30 * time.Second
	}
	if cfg.Recognizer.EmbeddingDim == 0 {
		cfg.Recognizer.EmbeddingDim = 512
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FG_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FG_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("FG_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FG_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FG_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FG_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FG_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FG_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FG_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FG_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FG_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FG_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("FG_MODELS_DIR"); v != "" {
		cfg.Recognizer.ModelsDir = v
	}
	if v := os.Getenv("FG_MATCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Recognizer.MatchThreshold = f
		}
	}
	if v := os.Getenv("FG_PRIMARY_FACE_POLICY"); v != "" {
		cfg.Recognizer.PrimaryFacePolicy = v
	}
}
