package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DBType        string `env:"DB_TYPE" envDefault:"sqlite"`
	DSNURL        string `env:"DSN_URL" envDefault:""`
	DBUser        string `env:"DB_USER" envDefault:""`
	DBPassword    string `env:"DB_PASSWORD" envDefault:""`
	DBAddr        string `env:"DB_ADDR" envDefault:""`
	DBName        string `env:"DB_NAME" envDefault:"gatekeeper"`
	DBPath        string `env:"DB_PATH" envDefault:"datas/gatekeeper.db"`
	DBPort        string `env:"DB_PORT" envDefault:"3306"`
	DBTablePrefix string `env:"DB_TABLE_PREFIX" envDefault:""`

	JWTSecret            string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer            string `env:"JWT_ISSUER" envDefault:"gatekeeper"`
	JWTExpirationMinutes int    `env:"JWT_EXPIRATION_MINUTES" envDefault:"1440"`

	// 0 表示永不过期
	ActivationKeyTTL    time.Duration `env:"ACTIVATION_KEY_TTL" envDefault:"0s"`
	EmailChangeKeyTTL   time.Duration `env:"EMAIL_CHANGE_KEY_TTL" envDefault:"48h"`
	PasswordResetKeyTTL time.Duration `env:"PASSWORD_RESET_KEY_TTL" envDefault:"48h"`

	RegistrationEnabled bool `env:"REGISTRATION_ENABLED" envDefault:"true"`
	EmailConfirmation   bool `env:"EMAIL_CONFIRMATION" envDefault:"true"`
	RoleDropdownCache   bool `env:"ROLE_DROPDOWN_CACHE" envDefault:"true"`

	// 初始管理员账号（可选）
	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:""`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:""`
}

func ParseConfig() (Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("no .env file, using process environment")
	}
	var Conf Config
	err := env.Parse(&Conf)
	if err != nil {
		logrus.WithError(err).Error("env.Parse error")
		return Config{}, err
	}
	logrus.WithFields(logrus.Fields{
		"db_type":      Conf.DBType,
		"table_prefix": Conf.DBTablePrefix,
		"http_port":    Conf.HTTPPort,
	}).Debug("config loaded")
	return Conf, nil
}

// JWTExpiry returns the session lifetime.
func (c Config) JWTExpiry() time.Duration {
	return time.Duration(c.JWTExpirationMinutes) * time.Minute
}
