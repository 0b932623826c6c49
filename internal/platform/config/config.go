package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/spf13/viper"
)

const (
	fileName  = "readingroom.yaml"
	envPrefix = "READINGROOM"
)

// ReaderSettings affect layout of the reading view, never progress logic.
type ReaderSettings struct {
	Theme     string `mapstructure:"theme"`
	WrapWidth int    `mapstructure:"wrap_width"`
}

type Config struct {
	DataDir      string
	DBPath       string
	LogPath      string
	LogLevel     string
	SocketPath   string
	ViewerPlugin string
	PollInterval time.Duration
	SyncDelay    time.Duration
	Reader       ReaderSettings
}

// Manager loads configuration from <data>/readingroom.yaml and READINGROOM_* env
// vars, and can watch the file for reader settings changes.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    Config
	callbacks []func(ReaderSettings)
}

func New(dataDir string) (Config, error) {
	m, err := NewManager(dataDir)
	if err != nil {
		return Config{}, err
	}
	return m.Get(), nil
}

func NewManager(dataDir string) (*Manager, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data dir is required")
	}
	v := viper.New()
	setDefaults(v, dataDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := filepath.Join(dataDir, fileName)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	m := &Manager{v: v}
	cfg, err := m.load(dataDir)
	if err != nil {
		return nil, err
	}
	m.config = cfg
	return m, nil
}

func setDefaults(v *viper.Viper, dataDir string) {
	stateDir := filepath.Join(dataDir, ".readingroom")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_path", filepath.Join(stateDir, "readingroom.log"))
	v.SetDefault("db_path", filepath.Join(stateDir, "readingroom.db"))
	v.SetDefault("socket_path", filepath.Join(stateDir, "relay.sock"))
	v.SetDefault("viewer_plugin", "")
	v.SetDefault("poll_interval", time.Second)
	v.SetDefault("sync_delay", time.Second)
	v.SetDefault("reader.theme", "dark")
	v.SetDefault("reader.wrap_width", 0)
}

func (m *Manager) load(dataDir string) (Config, error) {
	var settings ReaderSettings
	if err := m.v.UnmarshalKey("reader", &settings); err != nil {
		return Config{}, fmt.Errorf("unmarshal reader settings: %w", err)
	}
	cfg := Config{
		DataDir:      dataDir,
		DBPath:       m.v.GetString("db_path"),
		LogPath:      m.v.GetString("log_path"),
		LogLevel:     m.v.GetString("log_level"),
		SocketPath:   m.v.GetString("socket_path"),
		ViewerPlugin: m.v.GetString("viewer_plugin"),
		PollInterval: m.v.GetDuration("poll_interval"),
		SyncDelay:    m.v.GetDuration("sync_delay"),
		Reader:       settings,
	}
	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("poll_interval must be positive")
	}
	if cfg.SyncDelay <= 0 {
		return Config{}, fmt.Errorf("sync_delay must be positive")
	}
	return cfg, nil
}

// Get returns the current configuration (thread-safe).
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// OnSettingsChange registers a callback run after the config file changes.
func (m *Manager) OnSettingsChange(fn func(ReaderSettings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// WatchSettings enables hot-reloading of reader settings. Only the reader
// section is reloaded; paths and intervals need a restart. A file that fails to
// reload is logged and the previous settings stay in effect.
func (m *Manager) WatchSettings(logger hclog.Logger) {
	m.v.OnConfigChange(func(fsnotify.Event) {
		m.reloadSettings(logger)
	})
	m.v.WatchConfig()
}

func (m *Manager) reloadSettings(logger hclog.Logger) {
	if err := m.Reload(); err != nil {
		logger.Warn("reload settings failed", "path", m.v.ConfigFileUsed(), "error", err)
		return
	}
	logger.Debug("reader settings reloaded", "theme", m.Get().Reader.Theme)
}

// Reload re-reads the config file and hands the reader settings to every
// registered callback.
func (m *Manager) Reload() error {
	if err := m.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	cfg, err := m.load(m.Get().DataDir)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.config.Reader = cfg.Reader
	callbacks := make([]func(ReaderSettings), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg.Reader)
	}
	return nil
}
