package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shogo82148/go-sfv"
	"github.com/spf13/viper"

	"github.com/dev-tams/newsdrop/internal/errutil"
	"github.com/dev-tams/newsdrop/internal/secrets"
)

const (
	StoreRmapi = "rmapi"
	StoreS3    = "s3"
	StoreLocal = "local"
)

const (
	DefaultFolder   = "Newspapers"
	DefaultMaxDays  = 1
	DefaultSchedule = "0 6 * * *"

	// NYTHostsEnv may hold an RFC 8941 list of mirror hosts, e.g. `"https://a", "https://b"`.
	NYTHostsEnv = "NEWSDROP_NYT_HOSTS"
)

type Config struct {
	Version int `mapstructure:"version"`
	// Folder is the remote folder editions are synchronized with.
	Folder  string   `mapstructure:"folder"`
	Sources []string `mapstructure:"sources"`
	// MaxDays is the retention window; -1 disables retention.
	MaxDays    int    `mapstructure:"max_days"`
	OnlyFront  bool   `mapstructure:"only_front"`
	ScratchDir string `mapstructure:"scratch_dir"`
	SecretsDir string `mapstructure:"secrets_dir"`
	Schedule   string `mapstructure:"schedule"`

	Store         StoreConfig          `mapstructure:"store"`
	HTTP          HTTPConfig           `mapstructure:"http"`
	NYT           NYTConfig            `mapstructure:"nyt"`
	WaPo          WaPoConfig           `mapstructure:"wapo"`
	Notifications []NotificationConfig `mapstructure:"notifications"`
}

type StoreConfig struct {
	Type  string      `mapstructure:"type"`
	Rmapi RmapiConfig `mapstructure:"rmapi"`
	S3    S3Config    `mapstructure:"s3"`
	Local LocalConfig `mapstructure:"local"`
}

type RmapiConfig struct {
	Binary      string `mapstructure:"binary"`
	ConfigPath  string `mapstructure:"config_path"`
	AuthURL     string `mapstructure:"auth_url"`
	DocumentURL string `mapstructure:"document_url"`
	DeviceToken string `mapstructure:"device_token"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type LocalConfig struct {
	Path string `mapstructure:"path"`
}

type HTTPConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	UserAgent  string        `mapstructure:"user_agent"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type NYTConfig struct {
	Hosts        []string `mapstructure:"hosts"`
	Names        []string `mapstructure:"names"`
	PathTemplate string   `mapstructure:"path_template"`
}

type WaPoConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	FrontPage string `mapstructure:"front_page"`
}

type NotificationConfig struct {
	Type   string              `mapstructure:"type"`
	On     []string            `mapstructure:"on"`
	Config NotificationDetails `mapstructure:"config"`
}

type NotificationDetails struct {
	SMTPHost string            `mapstructure:"smtp_host"`
	SMTPPort int               `mapstructure:"smtp_port"`
	From     string            `mapstructure:"from"`
	To       string            `mapstructure:"to"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	URL      string            `mapstructure:"url"`
	Headers  map[string]string `mapstructure:"headers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("version", 1)
	v.SetDefault("folder", DefaultFolder)
	v.SetDefault("sources", []string{"nyt", "wapo"})
	v.SetDefault("max_days", DefaultMaxDays)
	v.SetDefault("schedule", DefaultSchedule)
	v.SetDefault("secrets_dir", ".secrets")
	v.SetDefault("store.type", StoreRmapi)
	v.SetDefault("http.timeout", 60*time.Second)
	v.SetDefault("http.max_retries", 3)
}

// LoadConfig reads path (optional) on a dedicated viper instance. Values
// may be overridden with NEWSDROP_* environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix("NEWSDROP")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ModifyConfig(&cfg)
	return &cfg, nil
}

// ModifyConfig expands environment references in string values and applies
// the NYT mirror override.
func ModifyConfig(cfg *Config) {
	cfg.Folder = os.ExpandEnv(cfg.Folder)
	cfg.ScratchDir = os.ExpandEnv(cfg.ScratchDir)
	cfg.SecretsDir = os.ExpandEnv(cfg.SecretsDir)

	st := &cfg.Store
	st.Type = os.ExpandEnv(st.Type)
	st.Rmapi.Binary = os.ExpandEnv(st.Rmapi.Binary)
	st.Rmapi.ConfigPath = os.ExpandEnv(st.Rmapi.ConfigPath)
	st.Rmapi.AuthURL = os.ExpandEnv(st.Rmapi.AuthURL)
	st.Rmapi.DocumentURL = os.ExpandEnv(st.Rmapi.DocumentURL)
	st.Rmapi.DeviceToken = os.ExpandEnv(st.Rmapi.DeviceToken)
	st.S3.Bucket = os.ExpandEnv(st.S3.Bucket)
	st.S3.Region = os.ExpandEnv(st.S3.Region)
	st.S3.Prefix = os.ExpandEnv(st.S3.Prefix)
	st.S3.Endpoint = os.ExpandEnv(st.S3.Endpoint)
	st.S3.AccessKey = os.ExpandEnv(st.S3.AccessKey)
	st.S3.SecretKey = os.ExpandEnv(st.S3.SecretKey)
	st.Local.Path = os.ExpandEnv(st.Local.Path)

	for i := range cfg.Notifications {
		nt := &cfg.Notifications[i]
		nt.Type = os.ExpandEnv(nt.Type)
		nt.Config.SMTPHost = os.ExpandEnv(nt.Config.SMTPHost)
		nt.Config.From = os.ExpandEnv(nt.Config.From)
		nt.Config.To = os.ExpandEnv(nt.Config.To)
		nt.Config.Username = os.ExpandEnv(nt.Config.Username)
		nt.Config.Password = os.ExpandEnv(nt.Config.Password)
		nt.Config.URL = os.ExpandEnv(nt.Config.URL)
		for k, v := range nt.Config.Headers {
			nt.Config.Headers[k] = os.ExpandEnv(v)
		}
	}

	if raw := os.Getenv(NYTHostsEnv); raw != "" {
		hosts, err := parseHostList(raw)
		if err != nil {
			errutil.LogMsg(err, "Failed to parse "+NYTHostsEnv)
		} else {
			cfg.NYT.Hosts = hosts
		}
	}
}

func parseHostList(raw string) ([]string, error) {
	list, err := sfv.DecodeList([]string{raw})
	if err != nil {
		return nil, err
	}
	var hosts []string
	for _, item := range list {
		if s, ok := item.Value.(string); ok && s != "" {
			hosts = append(hosts, s)
		}
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("no string items in list")
	}
	return hosts, nil
}

// ApplySecrets fills empty credentials from the secrets directory.
func (c *Config) ApplySecrets() error {
	s, err := secrets.Load(c.SecretsDir)
	if err != nil {
		return err
	}
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = s[key]
		}
	}
	fill(&c.Store.Rmapi.DeviceToken, secrets.DeviceToken)
	fill(&c.Store.S3.AccessKey, secrets.S3AccessKey)
	fill(&c.Store.S3.SecretKey, secrets.S3SecretKey)
	return nil
}
