package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Env      string `yaml:"env" env:"ENV" env-default:"local" env-description:"Environment" env-choices:"local,dev,prod"`
	ApiPort  int    `yaml:"api_port" env:"API_PORT" env-default:"8080"`
	ApiHost  string `yaml:"api_host" env:"API_HOST" env-default:"localhost"`
	Metrics  bool   `yaml:"metrics" env:"METRICS_ENABLED" env-default:"true"`
	Storage  `yaml:"storage"`
	Postgres `yaml:"postgres"`
	Auth     `yaml:"auth"`
	Wallet   `yaml:"wallet"`
	Backup   `yaml:"backup"`
}

type Storage struct {
	Driver     string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"lsc-coin.db"`
}

type Postgres struct {
	Host string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"POSTGRES_PORT" env-default:"5433"`
	User string `yaml:"user" env:"POSTGRES_USER" env-default:"test"`
	Pass string `yaml:"pass" env:"POSTGRES_PASS" env-default:"12345"`
	Db   string `yaml:"db" env:"POSTGRES_DB" env-default:"test_db"`
}

// URL returns the lib/pq connection string.
func (p Postgres) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", p.User, p.Pass, p.Host, p.Port, p.Db)
}

type Auth struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"secret42212"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"24h"`
	StaffCode string        `yaml:"staff_code" env:"STAFF_CODE" env-default:"LSCS"`
}

// Wallet holds the amounts and limits of the ledger.
type Wallet struct {
	UserInitialBalance  int64         `yaml:"user_initial_balance" env-default:"10"`
	StaffInitialBalance int64         `yaml:"staff_initial_balance" env-default:"1000"`
	RewardAmount        int64         `yaml:"reward_amount" env-default:"100"`
	RewardCooldown      time.Duration `yaml:"reward_cooldown" env-default:"60m"`
	GenerateMin         int64         `yaml:"generate_min" env-default:"1"`
	GenerateMax         int64         `yaml:"generate_max" env-default:"10"`
	GenerateCooldown    time.Duration `yaml:"generate_cooldown" env-default:"30s"`
	MinUsernameLength   int           `yaml:"min_username_length" env-default:"3"`
	MinPasswordLength   int           `yaml:"min_password_length" env-default:"6"`
}

type Backup struct {
	Schedule string `yaml:"schedule" env:"BACKUP_SCHEDULE" env-default:"0 * * * *"`
}

// DefaultWallet returns the wallet settings with every default applied.
func DefaultWallet() Wallet {
	return Wallet{
		UserInitialBalance:  10,
		StaffInitialBalance: 1000,
		RewardAmount:        100,
		RewardCooldown:      60 * time.Minute,
		GenerateMin:         1,
		GenerateMax:         10,
		GenerateCooldown:    30 * time.Second,
		MinUsernameLength:   3,
		MinPasswordLength:   6,
	}
}

func MustLoad() *Config {
	path := fetchConfigPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config file does not exist: " + path)
	}

	cfg, err := Load(path)
	if err != nil {
		panic("Failed to read config" + err.Error())
	}

	return cfg
}

// Load reads the config file at path. An empty path reads the environment only.
func Load(path string) (*Config, error) {
	var cfg Config

	var err error
	if path == "" {
		err = cleanenv.ReadEnv(&cfg)
	} else {
		err = cleanenv.ReadConfig(path, &cfg)
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Wallet.GenerateMin <= 0 || c.Wallet.GenerateMax < c.Wallet.GenerateMin {
		return fmt.Errorf("invalid generate range %d..%d", c.Wallet.GenerateMin, c.Wallet.GenerateMax)
	}
	if c.Auth.StaffCode == "" {
		return fmt.Errorf("staff code must not be empty")
	}
	return nil
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
