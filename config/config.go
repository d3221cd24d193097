package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Debug            bool   `envconfig:"debug"`
	Env              string `envconfig:"env"`
	Host             string `envconfig:"host"`
	Port             int    `envconfig:"port" default:"8080"`
	BaseUrl          string `envconfig:"base_url"`
	PostgresHost     string `envconfig:"postgres_host"`
	PostgresPort     int    `envconfig:"postgres_port" default:"5432"`
	PostgresUser     string `envconfig:"postgres_user"`
	PostgresPassword string `envconfig:"postgres_password"`
	PostgresDB       string `envconfig:"postgres_db"`
	JWTSecret        string `envconfig:"jwt_secret"`
	RedisAddr        string `envconfig:"redis_addr"`

	AWSRegion          string `envconfig:"aws_region"`
	AWSAccessKeyID     string `envconfig:"aws_access_key_id"`
	AWSSecretAccessKey string `envconfig:"aws_secret_access_key"`
	S3Bucket           string `envconfig:"s3_bucket"`

	// PushProvider selects the push gateway: "expo", "fcm" or "" (disabled).
	PushProvider                 string `envconfig:"push_provider"`
	GoogleApplicationCredentials string `envconfig:"google_application_credentials"`

	UploadRateLimit int `envconfig:"upload_rate_limit" default:"20"`
}

func Load() (*Config, error) {
	env := os.Getenv("GIN_MODE")
	if env != "release" {
		if err := godotenv.Load("./.env"); err != nil {
			log.Printf("couldn't load env vars: %v", err)
		}
	}

	c := &Config{}
	err := envconfig.Process("coachlink", c)
	if err != nil {
		return nil, err
	}
	return c, nil
}
