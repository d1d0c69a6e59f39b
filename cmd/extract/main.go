// Command extract loads the raw retail CSV feeds and publishes them as
// Parquet datasets to the configured target (S3 or a local directory).
//
// Credentials come from ACCESS_KEY, SECRET_KEY and REGION, optionally via a
// .env file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	yaml "gopkg.in/yaml.v3"

	"github.com/retailio/elt/pkg/extract"
	s3store "github.com/retailio/elt/pkg/storage/s3"
)

var version = "0.1.0-dev"

type Config struct {
	Target    string `toml:"target" yaml:"target"`
	HasHeader bool   `toml:"has_header" yaml:"has_header"`
	Charset   string `toml:"charset" yaml:"charset"`
	ChunkSize int    `toml:"chunk_size" yaml:"chunk_size"`
	Datasets  []struct {
		Name string `toml:"name" yaml:"name"`
		Path string `toml:"path" yaml:"path"`
	} `toml:"datasets" yaml:"datasets"`
}

func loadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{HasHeader: true}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, cfg)
	default:
		err = toml.Unmarshal(b, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Target == "" {
		return nil, fmt.Errorf("%s: target is required", path)
	}
	if len(cfg.Datasets) == 0 {
		return nil, fmt.Errorf("%s: no datasets configured", path)
	}
	return cfg, nil
}

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	configPath := flag.String("config", "", "Path to extract manifest (TOML or YAML)")
	envFile := flag.String("env-file", "", "Path to a .env file (default: ./.env if present)")
	chunkSize := flag.Int("chunk-size", 0, "Override rows per chunk when streaming CSV input")
	flag.Parse()

	if *showVersion {
		fmt.Println("extract", version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "no config provided; nothing to do. try --config <file> or --version")
		os.Exit(2)
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Error("load env file", "path", *envFile, "error", err)
			os.Exit(1)
		}
	} else {
		// best effort, like load_dotenv: a missing ./.env is fine
		_ = godotenv.Load()
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}
	if *chunkSize > 0 {
		cfg.ChunkSize = *chunkSize
	}

	datasets := make([]extract.Dataset, len(cfg.Datasets))
	for i, d := range cfg.Datasets {
		datasets[i] = extract.Dataset{Name: d.Name, Path: d.Path}
	}

	var store extract.ObjectStore
	if strings.HasPrefix(cfg.Target, "s3://") {
		st, err := s3store.New(s3store.ConfigFromEnv())
		if err != nil {
			log.Error("init s3", "error", err)
			os.Exit(1)
		}
		store = st
	}

	job, err := extract.NewJob(datasets, store, extract.Options{
		Target:    cfg.Target,
		HasHeader: cfg.HasHeader,
		Charset:   cfg.Charset,
		ChunkSize: cfg.ChunkSize,
		Logger:    log,
	})
	if err != nil {
		log.Error("configure job", "error", err)
		os.Exit(1)
	}
	if err := job.Run(context.Background()); err != nil {
		log.Error("extract run failed", "error", err)
		os.Exit(1)
	}
}
