package config

import (
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type dotenvConfig struct {
	paths []string
}

// DotEnvOption configures the dotenv module.
type DotEnvOption func(*dotenvConfig)

// WithDotEnvPath loads only path instead of the APP_ENV based candidates.
func WithDotEnvPath(path string) DotEnvOption {
	return func(cfg *dotenvConfig) {
		cfg.paths = []string{path}
	}
}

// NewDotEnvModule loads .env.<APP_ENV> and then .env. A variable keeps the
// first value it gets, so the process environment wins over both files and
// the environment specific file wins over .env. Loading happens when the
// module is created, before AppConfig reads APP_SERVICE_NAME.
func NewDotEnvModule(opts ...DotEnvOption) fx.Option {
	cfg := &dotenvConfig{paths: dotEnvCandidates(os.Getenv(envAppEnv))}
	for _, opt := range opts {
		opt(cfg)
	}
	loaded := loadDotEnv(cfg.paths)

	return fx.Module("dotenv",
		fx.Invoke(func(lc fx.Lifecycle, log *zap.Logger) {
			lc.Append(fx.StartHook(func() {
				if len(loaded) == 0 {
					log.Debug("no .env file loaded", zap.Strings("candidates", cfg.paths))
					return
				}
				log.Info("loaded .env files", zap.Strings("paths", loaded))
			}))
		}),
	)
}

func dotEnvCandidates(env string) []string {
	if env == "" {
		return []string{".env"}
	}
	return []string{".env." + env, ".env"}
}

// loadDotEnv returns the paths that existed and parsed.
func loadDotEnv(paths []string) []string {
	var loaded []string
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			loaded = append(loaded, p)
		}
	}
	return loaded
}
