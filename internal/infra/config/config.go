package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram" yaml:"telegram"`
	Download  DownloadConfig  `mapstructure:"download" yaml:"download"`
	Transcode TranscodeConfig `mapstructure:"transcode" yaml:"transcode"`
	Delivery  DeliveryConfig  `mapstructure:"delivery" yaml:"delivery"`
	Quality   QualityConfig   `mapstructure:"quality" yaml:"quality"`
	Prompt    PromptConfig    `mapstructure:"prompt" yaml:"prompt"`
	Batch     BatchConfig     `mapstructure:"batch" yaml:"batch"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Access    AccessConfig    `mapstructure:"access" yaml:"access"`

	Port string `mapstructure:"port" yaml:"port"`
}

type TelegramConfig struct {
	Token         string  `mapstructure:"token" yaml:"token"`
	OwnerID       int64   `mapstructure:"owner_id" yaml:"owner_id"`
	OwnerUsername string  `mapstructure:"owner_username" yaml:"owner_username"`
	SudoUsers     []int64 `mapstructure:"sudo_users" yaml:"sudo_users"`
	StartImage    string  `mapstructure:"start_image" yaml:"start_image"`
	PollTimeout   int     `mapstructure:"poll_timeout" yaml:"poll_timeout"`
	Debug         bool    `mapstructure:"debug" yaml:"debug"`
}

type DownloadConfig struct {
	Binary      string        `mapstructure:"binary" yaml:"binary"`
	WorkDir     string        `mapstructure:"work_dir" yaml:"work_dir"`
	CookiesFile string        `mapstructure:"cookies_file" yaml:"cookies_file"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type TranscodeConfig struct {
	FFmpeg      string        `mapstructure:"ffmpeg" yaml:"ffmpeg"`
	FFprobe     string        `mapstructure:"ffprobe" yaml:"ffprobe"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	AudioKbps   int           `mapstructure:"audio_kbps" yaml:"audio_kbps"`
	Preset      string        `mapstructure:"preset" yaml:"preset"`
	FallbackCRF int           `mapstructure:"fallback_crf" yaml:"fallback_crf"`
}

type DeliveryConfig struct {
	SizeLimitMB int     `mapstructure:"size_limit_mb" yaml:"size_limit_mb"`
	MarginMB    float64 `mapstructure:"margin_mb" yaml:"margin_mb"`
}

type QualityConfig struct {
	Ladder  []int         `mapstructure:"ladder" yaml:"ladder"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type PromptConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type BatchConfig struct {
	ItemPause time.Duration `mapstructure:"item_pause" yaml:"item_pause"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	Driver     string `mapstructure:"driver" yaml:"driver"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	DSN        string `mapstructure:"dsn" yaml:"dsn"`
}

type AccessConfig struct {
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisKey  string `mapstructure:"redis_key" yaml:"redis_key"`
}

const mib = 1024 * 1024

// CeilingBytes is the largest payload the chat transport accepts as a video.
func (d DeliveryConfig) CeilingBytes() int64 {
	return int64(d.SizeLimitMB) * mib
}

// TargetBytes is what the transcoder aims for, leaving MarginMB of headroom
// for container overhead.
func (d DeliveryConfig) TargetBytes() int64 {
	return d.CeilingBytes() - int64(d.MarginMB*mib)
}

// legacyEnv maps keys to the bare variable names older deployments use.
var legacyEnv = map[string]string{
	"telegram.token":          "BOT_TOKEN",
	"telegram.owner_id":       "OWNER_ID",
	"telegram.owner_username": "OWNER_USERNAME",
	"telegram.sudo_users":     "SUDO_USERS",
	"telegram.start_image":    "DEFAULT_IMG",
	"download.cookies_file":   "COOKIES_FILE_PATH",
	"port":                    "PORT",
}

// Load reads configuration from path (YAML), a .env file in the working
// directory, and GOYTBOT_* environment variables, in increasing priority.
// The file is optional unless a path was given explicitly.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		// Docker images mount the file under /config
		if _, errEx := os.Stat("/config/config.yaml"); errEx == nil {
			path = "/config/config.yaml"
		} else {
			path = ""
		}
	}

	// A missing .env is normal
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("GOYTBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		envKey := "GOYTBOT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		idListHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// idListHook decodes "7, 8" style strings into []int64. Blank and malformed
// ids are dropped.
func idListHook() mapstructure.DecodeHookFuncType {
	target := reflect.TypeOf([]int64(nil))
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != target {
			return data, nil
		}
		return parseIDs(data.(string)), nil
	}
}

// parseIDs splits a comma separated list of chat ids.
func parseIDs(s string) []int64 {
	ids := []int64{}
	for _, f := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// DefaultStartImage is shown by /start when the configured image cannot be sent.
const DefaultStartImage = "https://graph.org/file/5ed50675df0faf833efef-e102210eb72c1d5a17.jpg"

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "10000")
	v.SetDefault("telegram.start_image", DefaultStartImage)
	v.SetDefault("telegram.poll_timeout", 60)
	v.SetDefault("download.binary", "yt-dlp")
	v.SetDefault("download.timeout", 180*time.Second)
	v.SetDefault("transcode.ffmpeg", "ffmpeg")
	v.SetDefault("transcode.ffprobe", "ffprobe")
	v.SetDefault("transcode.timeout", 180*time.Second)
	v.SetDefault("transcode.audio_kbps", 64)
	v.SetDefault("transcode.preset", "veryfast")
	v.SetDefault("transcode.fallback_crf", 28)
	v.SetDefault("delivery.size_limit_mb", 50)
	v.SetDefault("delivery.margin_mb", 1)
	v.SetDefault("quality.ladder", []int{144, 240, 360, 480, 720, 1080})
	v.SetDefault("quality.timeout", 60*time.Second)
	v.SetDefault("prompt.timeout", 60*time.Second)
	v.SetDefault("batch.item_pause", 2*time.Second)
	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "data/goytbot.db")
	v.SetDefault("access.redis_key", "goytbot:sudo")
}

func (c *Config) validate() error {
	if c.Delivery.SizeLimitMB <= 0 {
		return errors.New("delivery.size_limit_mb must be positive")
	}

	if c.Delivery.MarginMB < 0 || c.Delivery.MarginMB >= float64(c.Delivery.SizeLimitMB) {
		return fmt.Errorf("delivery.margin_mb must be between 0 and %d", c.Delivery.SizeLimitMB)
	}

	if c.Transcode.AudioKbps <= 0 {
		c.Transcode.AudioKbps = 64
	}

	if len(c.Quality.Ladder) == 0 {
		return errors.New("quality.ladder must list at least one height")
	}
	for _, h := range c.Quality.Ladder {
		if h <= 0 {
			return fmt.Errorf("quality.ladder: invalid height %d", h)
		}
	}
	slices.Sort(c.Quality.Ladder)
	c.Quality.Ladder = slices.Compact(c.Quality.Ladder)

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite driver")
		}
	case "pgx", "postgres":
		c.Store.Driver = "pgx"
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the pgx driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q (expected sqlite or pgx)", c.Store.Driver)
	}

	if c.Telegram.PollTimeout <= 0 {
		c.Telegram.PollTimeout = 60
	}

	return nil
}

// ValidateBot checks the settings only the chat bot needs.
func (c *Config) ValidateBot() error {
	var missing []string
	if c.Telegram.Token == "" {
		missing = append(missing, "telegram.token (BOT_TOKEN)")
	}
	if c.Telegram.OwnerID == 0 {
		missing = append(missing, "telegram.owner_id (OWNER_ID)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
