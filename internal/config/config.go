package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr       string
	CORSOrigin string
	// Snapshot sources. Kind selects between http, file and s3.
	SnapshotKind    string
	SystemsURL      string
	ZipsURL         string
	SystemsPath     string
	ZipsPath        string
	SnapshotRefresh time.Duration
	// S3-compatible object storage for snapshots
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
	// Meilisearch
	MeiliURL       string
	MeiliMasterKey string
	// Redis - backs the replicated annotation store
	RedisURL string
	// Chat assistant (OpenAI-compatible endpoint)
	ChatAPIKey  string
	ChatBaseURL string
	ChatModel   string
}

func Load() Config {
	return Config{
		Addr:            getenv("API_ADDR", ":8787"),
		CORSOrigin:      getenv("WATERSHED_CORS_ORIGIN", "*"),
		SnapshotKind:    getenv("WATERSHED_SNAPSHOT_KIND", "file"),
		SystemsURL:      getenv("WATERSHED_SYSTEMS_URL", ""),
		ZipsURL:         getenv("WATERSHED_ZIPS_URL", ""),
		SystemsPath:     getenv("WATERSHED_SYSTEMS_PATH", "./data/data.json"),
		ZipsPath:        getenv("WATERSHED_ZIPS_PATH", "./data/zip_codes.json"),
		SnapshotRefresh: time.Duration(getenvInt("WATERSHED_SNAPSHOT_REFRESH_SECONDS", 0)) * time.Second,
		S3Endpoint:      getenv("WATERSHED_S3_ENDPOINT", ""),
		S3AccessKey:     getenv("WATERSHED_S3_ACCESS_KEY", ""),
		S3SecretKey:     getenv("WATERSHED_S3_SECRET_KEY", ""),
		S3Bucket:        getenv("WATERSHED_S3_BUCKET", "watershed-snapshots"),
		S3UseSSL:        getenvBool("WATERSHED_S3_USE_SSL", true),
		MeiliURL:        getenv("MEILI_URL", ""),
		MeiliMasterKey:  getenv("MEILI_MASTER_KEY", ""),
		RedisURL:        getenv("REDIS_URL", "redis://localhost:6379/0"),
		ChatAPIKey:      getenv("WATERSHED_CHAT_API_KEY", ""),
		ChatBaseURL:     getenv("WATERSHED_CHAT_BASE_URL", "https://api.fireworks.ai/inference/v1"),
		ChatModel:       getenv("WATERSHED_CHAT_MODEL", "accounts/fireworks/models/llama-v3p1-8b-instruct"),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
