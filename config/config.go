package config

import (
	"database/sql"
	"errors"
	"fmt"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"path"
	"path/filepath"
	"strings"
	"time"
	"worker-evaluation/constant"
)

type Config struct {
	MinIOBucket string        `yaml:"minio_bucket"`
	App         App           `yaml:"app"`
	DB          *sql.DB       `yaml:"db"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	Storage     *minio.Client `yaml:"storage"`
	Redis       *redis.Client `yaml:"redis"`
	Server      Server        `yaml:"server"`
	Uploads     Uploads       `yaml:"uploads"`
	Snapshot    Snapshot      `yaml:"snapshot"`
	LLM         LLM           `yaml:"llm"`
	Transcript  Transcript    `yaml:"transcript"`
	Emotion     Emotion       `yaml:"emotion"`
	Pipeline    Pipeline      `yaml:"pipeline"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort  string `yaml:"http_port"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
}

// Enabled reports whether a broker was configured at all.
func (r *RabbitMQ) Enabled() bool {
	return r != nil && r.Host != ""
}

type Uploads struct {
	Dir                string        `yaml:"dir"`
	Watch              bool          `yaml:"watch"`
	StabilityThreshold time.Duration `yaml:"stability_threshold"`
	PollInterval       time.Duration `yaml:"poll_interval"`
}

// uploadsPrefix is the leading segment of file paths stored on session videos.
const uploadsPrefix = "uploads"

// StoredPath maps a file under Dir to the path kept on its record: uploads/<path relative to Dir>.
func (u Uploads) StoredPath(file string) (string, error) {
	rel, err := filepath.Rel(u.Dir, file)
	if err != nil {
		return "", err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is not inside %s", file, u.Dir)
	}
	return path.Join(uploadsPrefix, filepath.ToSlash(rel)), nil
}

// Resolve maps a stored file path onto Dir, whatever Dir is named. Absolute paths are kept.
func (u Uploads) Resolve(stored string) string {
	if filepath.IsAbs(stored) {
		return stored
	}
	rel := strings.TrimPrefix(path.Clean(filepath.ToSlash(stored)), uploadsPrefix+"/")
	return filepath.Join(u.Dir, filepath.FromSlash(rel))
}

type Snapshot struct {
	Backend constant.SnapshotBackend `yaml:"backend"`
	Dir     string                   `yaml:"dir"`
	Prefix  string                   `yaml:"prefix"`
	LockTTL time.Duration            `yaml:"lock_ttl"`
}

type LLM struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type Transcript struct {
	Backend      constant.TranscriptBackend `yaml:"backend"`
	APIKey       string                     `yaml:"api_key"`
	BaseURL      string                     `yaml:"base_url"`
	Model        string                     `yaml:"model"`
	Python       string                     `yaml:"python"`
	ScriptPath   string                     `yaml:"script_path"`
	ConvertToWav bool                       `yaml:"convert_to_wav"`
	Timeout      time.Duration              `yaml:"timeout"`
}

type Emotion struct {
	Python     string        `yaml:"python"`
	ScriptPath string        `yaml:"script_path"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Enabled is false when no analyzer script is configured; emotion scoring then degrades to neutral.
func (e Emotion) Enabled() bool {
	return e.ScriptPath != ""
}

type Pipeline struct {
	AnswerWeight  float64 `yaml:"answer_weight"`
	EmotionWeight float64 `yaml:"emotion_weight"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", constant.EnvironmentDevelop.String())
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.workers", 2)
	v.SetDefault("server.queue_size", 64)
	v.SetDefault("rabbitmq_port", 5672)
	v.SetDefault("rabbitmq_kind", "direct")
	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.watch", true)
	v.SetDefault("uploads.stability_threshold", 2*time.Second)
	v.SetDefault("uploads.poll_interval", 200*time.Millisecond)
	v.SetDefault("snapshot.backend", string(constant.SnapshotBackendFile))
	v.SetDefault("snapshot.dir", "evaluations")
	v.SetDefault("snapshot.prefix", "evaluations")
	v.SetDefault("snapshot.lock_ttl", 30*time.Second)
	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.model", "nvidia/nemotron-nano-9b-v2:free")
	v.SetDefault("llm.timeout", 90*time.Second)
	v.SetDefault("transcript.backend", string(constant.TranscriptBackendOpenAI))
	v.SetDefault("transcript.model", "whisper-1")
	v.SetDefault("transcript.python", "python3")
	v.SetDefault("transcript.convert_to_wav", true)
	v.SetDefault("transcript.timeout", 120*time.Second)
	v.SetDefault("emotion.python", "python3")
	v.SetDefault("emotion.timeout", 180*time.Second)
	v.SetDefault("pipeline.weights.answer", 0.7)
	v.SetDefault("pipeline.weights.emotion", 0.3)
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(path, ".env"))

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", "LLM_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("transcript.api_key", "TRANSCRIPT_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("postgresql_host", "POSTGRESQL_HOST", "DATABASE_URL")
	setDefaults(v)

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := fromViper(v)

	if dsn := v.GetString("postgresql_host"); dsn != "" {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, err
		}
		cfg.DB = db
	}

	if url := v.GetString("minio.url"); url != "" {
		minioClient, err := minio.New(url, &minio.Options{
			Creds:  credentials.NewStaticV4(v.GetString("minio.access_id"), v.GetString("minio.secret_access_key"), ""),
			Secure: v.GetBool("minio.secure"),
		})
		if err != nil {
			return nil, err
		}
		cfg.Storage = minioClient
	}

	if addr := v.GetString("redis.addr"); addr != "" {
		cfg.Redis = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		MinIOBucket: v.GetString("minio.bucket"),
		App: App{
			Environment: v.GetString("app.environment"),
			Host:        v.GetString("app.host"),
			Protocol:    v.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort:  v.GetString("server.port"),
			Workers:   v.GetInt("server.workers"),
			QueueSize: v.GetInt("server.queue_size"),
		},
		Queue: &RabbitMQ{
			Host:         v.GetString("rabbitmq_host"),
			Port:         v.GetInt("rabbitmq_port"),
			User:         v.GetString("rabbitmq_user"),
			Pass:         v.GetString("rabbitmq_pass"),
			ExchangeName: v.GetString("rabbitmq_exchange"),
			Kind:         v.GetString("rabbitmq_kind"),
		},
		Uploads: Uploads{
			Dir:                v.GetString("uploads.dir"),
			Watch:              v.GetBool("uploads.watch"),
			StabilityThreshold: v.GetDuration("uploads.stability_threshold"),
			PollInterval:       v.GetDuration("uploads.poll_interval"),
		},
		Snapshot: Snapshot{
			Backend: constant.SnapshotBackend(v.GetString("snapshot.backend")),
			Dir:     v.GetString("snapshot.dir"),
			Prefix:  v.GetString("snapshot.prefix"),
			LockTTL: v.GetDuration("snapshot.lock_ttl"),
		},
		LLM: LLM{
			BaseURL: v.GetString("llm.base_url"),
			APIKey:  v.GetString("llm.api_key"),
			Model:   v.GetString("llm.model"),
			Timeout: v.GetDuration("llm.timeout"),
		},
		Transcript: Transcript{
			Backend:      constant.TranscriptBackend(v.GetString("transcript.backend")),
			APIKey:       v.GetString("transcript.api_key"),
			BaseURL:      v.GetString("transcript.base_url"),
			Model:        v.GetString("transcript.model"),
			Python:       v.GetString("transcript.python"),
			ScriptPath:   v.GetString("transcript.script_path"),
			ConvertToWav: v.GetBool("transcript.convert_to_wav"),
			Timeout:      v.GetDuration("transcript.timeout"),
		},
		Emotion: Emotion{
			Python:     v.GetString("emotion.python"),
			ScriptPath: v.GetString("emotion.script_path"),
			Timeout:    v.GetDuration("emotion.timeout"),
		},
		Pipeline: Pipeline{
			AnswerWeight:  v.GetFloat64("pipeline.weights.answer"),
			EmotionWeight: v.GetFloat64("pipeline.weights.emotion"),
		},
	}
}

func (c *Config) Validate() error {
	switch c.Snapshot.Backend {
	case constant.SnapshotBackendFile:
	case constant.SnapshotBackendMinIO:
		if c.Storage == nil || c.MinIOBucket == "" {
			return errors.New("snapshot backend minio requires minio.url and minio.bucket")
		}
	default:
		return errors.New("unsupported snapshot backend: " + string(c.Snapshot.Backend))
	}

	switch c.Transcript.Backend {
	case constant.TranscriptBackendOpenAI, constant.TranscriptBackendScript:
	default:
		return errors.New("unsupported transcript backend: " + string(c.Transcript.Backend))
	}

	if c.Pipeline.AnswerWeight < 0 || c.Pipeline.EmotionWeight < 0 {
		return errors.New("pipeline weights must not be negative")
	}
	if c.Pipeline.AnswerWeight+c.Pipeline.EmotionWeight == 0 {
		return errors.New("pipeline weights must not both be zero")
	}
	return nil
}
