package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Server struct {
	Host        string `envconfig:"SERVER_HOST" default:"localhost"`
	Port        string `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout int    `envconfig:"SERVER_TIMEOUT" default:"10"`
}

type Db struct {
	Dialect        string `envconfig:"DB_DIALECT" default:"sqlite"`
	Source         string `envconfig:"DB_NAME" default:"newsletter.db"`
	MigrationsPath string `envconfig:"DB_MIGRATIONS_DIR" default:"./migrations"`
}

type Mongo struct {
	URI        string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017/"`
	Database   string `envconfig:"MONGO_DATABASE" default:"newsletter"`
	Collection string `envconfig:"MONGO_COLLECTION" default:"subscribers"`
}

type Email struct {
	User     string `envconfig:"EMAIL_USER"`
	Host     string `envconfig:"EMAIL_HOST"`
	Port     string `envconfig:"EMAIL_PORT" default:"587"`
	Password string `envconfig:"EMAIL_PASSWORD"`
	From     string `envconfig:"EMAIL_FROM" default:"noreply@yourdomain.com"`
}

type Redis struct {
	Enabled    bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Address    string `envconfig:"REDIS_ADDRESS" default:"localhost:6379"`
	TTLSeconds int    `envconfig:"REDIS_TTL_SECONDS" default:"60"`
}

type Config struct {
	BaseURL        string `envconfig:"BASE_URL" default:"http://localhost:8080"`
	TemplatesDir   string `envconfig:"TEMPLATES_DIR" default:"./templates"`
	SiteConfigPath string `envconfig:"SITE_CONFIG_PATH" default:"./configs/site.yaml"`
	LogsPath       string `envconfig:"LOGS_PATH" default:"./logs/newsletter.log"`
	MailAuditPath  string `envconfig:"MAIL_AUDIT_PATH" default:"./logs/mail-audit.log"`

	Server Server
	DB     Db
	Mongo  Mongo
	Email  Email
	Redis  Redis
}

func NewConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) ServerAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}
