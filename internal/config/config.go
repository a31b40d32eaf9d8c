package config

import (
	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port          int    `env:"PORT"            envDefault:"8080"`
	MaxUploadSize int64  `env:"MAX_UPLOAD_SIZE" envDefault:"104857600"`
	UploadDir     string `env:"UPLOAD_DIR"      envDefault:"./uploads"`

	CacheBackend    string `env:"CACHE_BACKEND"     envDefault:"sqlite"`
	CacheSQLitePath string `env:"CACHE_SQLITE_PATH" envDefault:"./stepshot-cache.db"`
	CacheBadgerPath string `env:"CACHE_BADGER_PATH" envDefault:"./stepshot-cache"`

	OpenAIAPIKey string `env:"OPENAI_API_KEY"`

	SceneThreshold float64 `env:"SCENE_THRESHOLD" envDefault:"0.2"`
	MinFrames      int     `env:"MIN_FRAMES"      envDefault:"10"`
	MaxFrames      int     `env:"MAX_FRAMES"      envDefault:"60"`
	FrameSize      int     `env:"FRAME_SIZE"      envDefault:"512"`

	AlignJumpCost float64 `env:"ALIGN_JUMP_COST" envDefault:"0.02"`
	AlignTopK     int     `env:"ALIGN_TOP_K"     envDefault:"3"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
