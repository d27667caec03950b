// Package config loads and holds the anonymizer configuration.
// Settings start from built-in defaults, then anonymizer.yaml (optional),
// then a .env file in the working directory (optional), then environment
// variables. Command-line flags are applied last by the caller.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"notes-anonymizer/internal/logger"
)

// DefaultFile is the config file read when no explicit path is given.
const DefaultFile = "anonymizer.yaml"

// Config holds the full run configuration.
type Config struct {
	InputFile   string `yaml:"inputFile"`
	OutputFile  string `yaml:"outputFile"`
	MappingFile string `yaml:"mappingFile"`

	// ArchivePath is the bbolt file that receives a copy of every mapping
	// log. Empty disables archiving.
	ArchivePath string `yaml:"archivePath"`

	LogLevel string `yaml:"logLevel"`

	// MatchTimeout bounds a single recognizer match. 0 (the default) means
	// no limit.
	MatchTimeout time.Duration `yaml:"matchTimeout"`
}

// Load returns config with defaults overridden by the YAML file at path,
// .env and environment variables. An empty path means DefaultFile.
// Problems with either file are logged to log (nil discards them) and
// never fatal.
func Load(path string, log *logger.Logger) *Config {
	if path == "" {
		path = DefaultFile
	}
	if log == nil {
		log = logger.Nop()
	}
	cfg := defaults()
	loadFile(cfg, path, log)
	loadDotEnv(".env", log)
	loadEnv(cfg)
	return cfg
}

func defaults() *Config {
	return &Config{
		InputFile:   "PatientNotes.txt",
		OutputFile:  "AnonymizedData.txt",
		MappingFile: "MappedData.txt",
		LogLevel:    "warn",
	}
}

func loadFile(cfg *Config, path string, log *logger.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // file is optional
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Warnf("parse_file", "could not parse %s: %v", path, err)
	} else {
		log.Debugf("load_file", "loaded %s", path)
	}
}

// loadDotEnv copies .env entries into the process environment without
// overriding variables that are already set.
func loadDotEnv(path string, log *logger.Logger) {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		log.Warnf("parse_dotenv", "could not parse %s: %v", path, err)
	}
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("ANONYMIZER_INPUT"); v != "" {
		cfg.InputFile = v
	}
	if v := os.Getenv("ANONYMIZER_OUTPUT"); v != "" {
		cfg.OutputFile = v
	}
	if v := os.Getenv("ANONYMIZER_MAPPING"); v != "" {
		cfg.MappingFile = v
	}
	if v := os.Getenv("ANONYMIZER_ARCHIVE"); v != "" {
		cfg.ArchivePath = v
	}
	if v := os.Getenv("ANONYMIZER_MATCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MatchTimeout = d
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
