package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr      string
	PublicDir string
}

// Load reads .env if present, then the environment. PORT matches the
// original deployment convention; ADDR wins when both are set.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Addr:      ":8080",
		PublicDir: "./public",
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	if addr := os.Getenv("ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if dir := os.Getenv("PUBLIC_DIR"); dir != "" {
		cfg.PublicDir = dir
	}
	return cfg
}
