package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Detector  DetectorConfig
	Embedding EmbeddingConfig
	Index     IndexConfig
	Faces     FacesConfig
	Matching  MatchingConfig
	Filter    FilterConfig
}

type DetectorConfig struct {
	URL string // defaults to http://localhost:8001
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
	Dim int    // defaults to 512 (Facenet512-style models)
}

type IndexConfig struct {
	Path string // path to the persisted similarity index (defaults to customer_index.bin)
}

type FacesConfig struct {
	Dir string // directory for enrolled face crops (defaults to known_faces)
}

type MatchingConfig struct {
	Threshold float64 `yaml:"threshold"`
}

type FilterConfig struct {
	EdgeMarginRatio  float64 `yaml:"edge_margin_ratio"`
	ProfileThreshold float64 `yaml:"profile_threshold"`
}

// defaultsFile mirrors the structure of the embedded defaults.yaml.
type defaultsFile struct {
	Matching MatchingConfig `yaml:"matching"`
	Filter   FilterConfig   `yaml:"filter"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float64.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var defaults defaultsFile
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Detector: DetectorConfig{
			URL: envString("DETECTOR_URL", "http://localhost:8001"),
		},
		Embedding: EmbeddingConfig{
			URL: envString("EMBEDDING_URL", "http://localhost:8000"),
			Dim: envInt("EMBEDDING_DIM", 512),
		},
		Index: IndexConfig{
			Path: envString("INDEX_PATH", "customer_index.bin"),
		},
		Faces: FacesConfig{
			Dir: envString("FACES_DIR", "known_faces"),
		},
		Matching: MatchingConfig{
			Threshold: envFloat("MATCH_THRESHOLD", defaults.Matching.Threshold),
		},
		Filter: FilterConfig{
			EdgeMarginRatio:  envFloat("EDGE_MARGIN_RATIO", defaults.Filter.EdgeMarginRatio),
			ProfileThreshold: envFloat("PROFILE_THRESHOLD", defaults.Filter.ProfileThreshold),
		},
	}
}
