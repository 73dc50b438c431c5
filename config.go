package sprites

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/maxhully/sprites/spritegen"
)

const (
	StorageSQLite = "sqlite"
	StorageDir    = "dir"
)

// The origins the sprite frontend is served from
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://0.0.0.0:8080",
	"http://frontend:3000",
	"http://localhost",
}

type GenerationDefaults struct {
	Iterations int     `yaml:"n_iters"`
	Extinction float64 `yaml:"extinction"`
	Survival   float64 `yaml:"survival"`
	Size       int     `yaml:"size"`
}

func (d GenerationDefaults) Params() spritegen.Params {
	return spritegen.Params{
		Iterations: d.Iterations,
		Extinction: d.Extinction,
		Survival:   d.Survival,
		Size:       d.Size,
	}
}

type Config struct {
	Addr           string             `yaml:"addr"`
	Storage        string             `yaml:"storage"`
	DBPath         string             `yaml:"db_path"`
	PoolSize       int                `yaml:"pool_size"`
	ImageDir       string             `yaml:"image_dir"`
	AllowedOrigins []string           `yaml:"allowed_origins"`
	Development    bool               `yaml:"development"`
	Defaults       GenerationDefaults `yaml:"defaults"`
}

func DefaultConfig() Config {
	p := spritegen.DefaultParams()
	return Config{
		Addr:           ":7777",
		Storage:        StorageSQLite,
		DBPath:         "sprites.db",
		PoolSize:       10,
		ImageDir:       "generated_sprites",
		AllowedOrigins: append([]string(nil), defaultAllowedOrigins...),
		Defaults: GenerationDefaults{
			Iterations: p.Iterations,
			Extinction: p.Extinction,
			Survival:   p.Survival,
			Size:       p.Size,
		},
	}
}

// LoadConfig starts from DefaultConfig, then applies the YAML file at path (if path
// isn't empty), then the SPRITES_* environment variables. A .env file in the working
// directory is loaded into the environment first, if there is one.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("couldn't parse %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("couldn't load .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from SPRITES_* variables. lookup is os.LookupEnv outside
// of tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var err error
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(name); ok && err == nil {
			if *dst, err = strconv.Atoi(v); err != nil {
				err = fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := lookup(name); ok && err == nil {
			if *dst, err = strconv.ParseFloat(v, 64); err != nil {
				err = fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	str("SPRITES_ADDR", &c.Addr)
	str("SPRITES_STORAGE", &c.Storage)
	str("SPRITES_DB_PATH", &c.DBPath)
	str("SPRITES_IMAGE_DIR", &c.ImageDir)
	integer("SPRITES_POOL_SIZE", &c.PoolSize)
	integer("SPRITES_DEFAULT_N_ITERS", &c.Defaults.Iterations)
	integer("SPRITES_DEFAULT_SIZE", &c.Defaults.Size)
	float("SPRITES_DEFAULT_EXTINCTION", &c.Defaults.Extinction)
	float("SPRITES_DEFAULT_SURVIVAL", &c.Defaults.Survival)
	if v, ok := lookup("SPRITES_ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, origin)
			}
		}
	}
	if v, ok := lookup("SPRITES_DEVELOPMENT"); ok && err == nil {
		if c.Development, err = strconv.ParseBool(v); err != nil {
			err = fmt.Errorf("SPRITES_DEVELOPMENT: %w", err)
		}
	}
	return err
}

func (c Config) Validate() error {
	switch c.Storage {
	case StorageSQLite:
		if c.DBPath == "" {
			return errors.New("db_path is required for sqlite storage")
		}
		if c.PoolSize < 1 {
			return fmt.Errorf("pool_size must be at least 1, got %d", c.PoolSize)
		}
	case StorageDir:
		if c.ImageDir == "" {
			return errors.New("image_dir is required for dir storage")
		}
	default:
		return fmt.Errorf("storage must be %q or %q, got %q", StorageSQLite, StorageDir, c.Storage)
	}
	if err := c.Defaults.Params().Validate(); err != nil {
		return fmt.Errorf("bad generation defaults: %w", err)
	}
	return nil
}

// OpenStore opens whichever SpriteStore the config asks for. The returned close
// function releases it.
func (c Config) OpenStore() (SpriteStore, func() error, error) {
	if c.Storage == StorageDir {
		store, err := NewDirStore(c.ImageDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	}
	db, err := NewDB(c.DBPath, c.PoolSize)
	if err != nil {
		return nil, nil, err
	}
	return db, db.Close, nil
}
