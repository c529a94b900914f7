package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	tomlstore "github.com/bnema/sessionkit/internal/adapters/storage/toml"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configDirName  = ".sessionkit"
	configFileName = "config.toml"
	envPrefix      = "SK"

	keyBaseURL        = "base_url"
	keyTokenKey       = "token_key"
	keyLoginPath      = "login_path"
	keyProfilePath    = "profile_path"
	keyEventsPath     = "events_path"
	keyStorageBackend = "storage.backend"
	keyStoragePath    = tomlstore.StoragePathKey
	keyLogLevel       = "log_level"

	defaultBaseURL = "http://127.0.0.1:8787/api"
)

const (
	backendTOML  = "toml"
	backendFile  = "file"
	backendPass  = "pass"
	backendChain = "chain"
)

var (
	storageBackends = []interface{}{backendTOML, backendFile, backendPass, backendChain}
	logLevels       = []interface{}{"trace", "debug", "info", "warn", "warning", "error", "fatal", "panic"}
	absolutePath    = regexp.MustCompile(`^/`)
)

type settings struct {
	BaseURL        string
	TokenKey       string
	LoginPath      string
	ProfilePath    string
	EventsPath     string
	StorageBackend string
	StoragePath    string
	LogLevel       string
}

func (s settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.BaseURL, validation.Required, is.URL, validation.By(httpScheme)),
		validation.Field(&s.TokenKey, validation.Required, validation.Length(1, 128)),
		validation.Field(&s.LoginPath, validation.Required, validation.Match(absolutePath)),
		validation.Field(&s.ProfilePath, validation.Required, validation.Match(absolutePath)),
		validation.Field(&s.EventsPath, validation.Required, validation.Match(absolutePath)),
		validation.Field(&s.StorageBackend, validation.Required, validation.In(storageBackends...)),
		validation.Field(&s.LogLevel, validation.In(logLevels...)),
	)
}

func httpScheme(value interface{}) error {
	raw, _ := value.(string)
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch parsed.Scheme {
	case "http", "https":
		return nil
	default:
		return errors.New("must use http or https")
	}
}

func defaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(homeDir, configDirName, configFileName), nil
}

// newViper layers flags over SK_* environment variables over the config
// file over defaults.
func newViper(configPath string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(keyBaseURL, defaultBaseURL)
	v.SetDefault(keyTokenKey, "auth_token")
	v.SetDefault(keyLoginPath, "/auth/login")
	v.SetDefault(keyProfilePath, "/auth/me")
	v.SetDefault(keyEventsPath, "/events")
	v.SetDefault(keyStorageBackend, backendTOML)
	v.SetDefault(keyLogLevel, "warn")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		keyBaseURL:        "base-url",
		keyLogLevel:       "log-level",
		keyStorageBackend: "storage",
	} {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind --%s: %w", flag, err)
			}
		}
	}

	if configPath == "" {
		path, err := defaultConfigPath()
		if err != nil {
			return nil, err
		}
		configPath = path
	}
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	return v, nil
}

func loadSettings(v *viper.Viper) (settings, error) {
	s := settings{
		BaseURL:        strings.TrimRight(strings.TrimSpace(v.GetString(keyBaseURL)), "/"),
		TokenKey:       strings.TrimSpace(v.GetString(keyTokenKey)),
		LoginPath:      v.GetString(keyLoginPath),
		ProfilePath:    v.GetString(keyProfilePath),
		EventsPath:     v.GetString(keyEventsPath),
		StorageBackend: strings.ToLower(strings.TrimSpace(v.GetString(keyStorageBackend))),
		StoragePath:    v.GetString(keyStoragePath),
		LogLevel:       strings.ToLower(strings.TrimSpace(v.GetString(keyLogLevel))),
	}
	if err := s.Validate(); err != nil {
		return settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}
