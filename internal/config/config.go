package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Camera   CameraConfig
	Detector DetectorConfig
	Match    MatchConfig
	Pipeline PipelineConfig
	Ledger   LedgerConfig
	Database DatabaseConfig
	SIS      SISConfig
	Web      WebConfig
}

type CameraConfig struct {
	SnapshotURL            string        // HTTP endpoint returning a JPEG per request
	FrameInterval          time.Duration // delay between processed frames
	MaxConsecutiveFailures int           // read failures tolerated before the pipeline stops
	ReadTimeout            time.Duration // timeout for a single snapshot read
}

type DetectorConfig struct {
	URL          string        // face detector/encoder service (e.g., http://localhost:8000)
	Dim          int           // expected embedding dimension
	Timeout      time.Duration // request timeout
	MaxImageSize int           // longest image side sent to the detector
}

type MatchConfig struct {
	Threshold float64 // maximum distance for a match; above it the face is unknown
}

type PipelineConfig struct {
	Cooldown        time.Duration // per-identity re-recognition cooldown
	DedupThreshold  int           // frame dHash hamming threshold, 0 disables dedup
	ShortlistCutoff int           // roster size above which the HNSW shortlist is used
	ShortlistK      int           // nearest reference encodings the shortlist returns
}

type LedgerConfig struct {
	Backend string // "postgres" or "csv"
	CSVDir  string // directory for per-day CSV files (csv backend)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // maximum open connections (default 25)
	MaxIdleConns int    // maximum idle connections (default 5)
}

// SISConfig points at an existing school information system database
// used only by the `students import` command.
type SISConfig struct {
	MySQLDSN string // e.g. sis:sis@tcp(localhost:3306)/school
}

type WebConfig struct {
	Host string
	Port int
}

// defaults mirrors the structure of the embedded defaults.yaml.
type defaults struct {
	Match struct {
		Threshold float64 `yaml:"threshold"`
	} `yaml:"match"`
	Camera struct {
		FrameIntervalMs        int `yaml:"frame_interval_ms"`
		MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`
		ReadTimeoutMs          int `yaml:"read_timeout_ms"`
	} `yaml:"camera"`
	Pipeline struct {
		CooldownSeconds       int `yaml:"cooldown_seconds"`
		DedupHammingThreshold int `yaml:"dedup_hamming_threshold"`
		ShortlistCutoff       int `yaml:"shortlist_cutoff"`
		ShortlistK            int `yaml:"shortlist_k"`
	} `yaml:"pipeline"`
	Detector struct {
		TimeoutMs    int `yaml:"timeout_ms"`
		MaxImageSize int `yaml:"max_image_size"`
	} `yaml:"detector"`
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

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a fallback.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// Embedded file, so this can only happen when the file itself is broken.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Camera: CameraConfig{
			SnapshotURL:            os.Getenv("CAMERA_SNAPSHOT_URL"),
			FrameInterval:          time.Duration(envInt("CAMERA_FRAME_INTERVAL_MS", d.Camera.FrameIntervalMs)) * time.Millisecond,
			MaxConsecutiveFailures: envInt("CAMERA_MAX_FAILURES", d.Camera.MaxConsecutiveFailures),
			ReadTimeout:            time.Duration(envInt("CAMERA_READ_TIMEOUT_MS", d.Camera.ReadTimeoutMs)) * time.Millisecond,
		},
		Detector: DetectorConfig{
			URL:          envString("DETECTOR_URL", "http://localhost:8000"),
			Dim:          envInt("DETECTOR_DIM", 512),
			Timeout:      time.Duration(envInt("DETECTOR_TIMEOUT_MS", d.Detector.TimeoutMs)) * time.Millisecond,
			MaxImageSize: envInt("DETECTOR_MAX_IMAGE_SIZE", d.Detector.MaxImageSize),
		},
		Match: MatchConfig{
			Threshold: envFloat("MATCH_THRESHOLD", d.Match.Threshold),
		},
		Pipeline: PipelineConfig{
			Cooldown:        time.Duration(envInt("PIPELINE_COOLDOWN_SECONDS", d.Pipeline.CooldownSeconds)) * time.Second,
			DedupThreshold:  envInt("PIPELINE_DEDUP_THRESHOLD", d.Pipeline.DedupHammingThreshold),
			ShortlistCutoff: envInt("PIPELINE_SHORTLIST_CUTOFF", d.Pipeline.ShortlistCutoff),
			ShortlistK:      envInt("PIPELINE_SHORTLIST_K", d.Pipeline.ShortlistK),
		},
		Ledger: LedgerConfig{
			Backend: envString("LEDGER_BACKEND", "csv"),
			CSVDir:  envString("LEDGER_CSV_DIR", "attendance_records"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		SIS: SISConfig{
			MySQLDSN: os.Getenv("SIS_MYSQL_DSN"),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
	}
}
