package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"auctionhouse/native/auction"
)

// Config carries the operator-facing settings of the auction host.
type Config struct {
	DataDir         string `toml:"DataDir"`
	Backend         string `toml:"Backend"`
	SettlementToken string `toml:"SettlementToken"`
	VaultAddress    string `toml:"VaultAddress"`
	Env             string `toml:"Env"`
	MetricsAddress  string `toml:"MetricsAddress"`
	DefaultPageSize uint64 `toml:"DefaultPageSize"`
}

const (
	// BackendLevelDB selects the LevelDB storage backend.
	BackendLevelDB = "leveldb"
	// BackendBolt selects the single-file bbolt storage backend.
	BackendBolt = "bolt"

	defaultBackend  = BackendLevelDB
	defaultToken    = "AUC"
	defaultPageSize = 50
)

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg, path)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config, path string) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = filepath.Join(filepath.Dir(path), "data")
	}
	if strings.TrimSpace(cfg.Backend) == "" {
		cfg.Backend = defaultBackend
	}
	if strings.TrimSpace(cfg.SettlementToken) == "" {
		cfg.SettlementToken = defaultToken
	}
	if cfg.DefaultPageSize == 0 {
		cfg.DefaultPageSize = defaultPageSize
	}
}

// Validate checks field formats without touching the filesystem.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	switch cfg.Backend {
	case BackendLevelDB, BackendBolt:
	default:
		return fmt.Errorf("config: unsupported backend %q", cfg.Backend)
	}
	if _, err := auction.NormalizeToken(cfg.SettlementToken); err != nil {
		return fmt.Errorf("config: %v", err)
	}
	if _, err := cfg.Vault(); err != nil {
		return err
	}
	return nil
}

// Vault decodes the configured vault address.
func (cfg *Config) Vault() ([20]byte, error) {
	var vault [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(cfg.VaultAddress), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != 20 {
		return vault, fmt.Errorf("config: VaultAddress must be a 20-byte hex address")
	}
	copy(vault[:], decoded)
	if vault == ([20]byte{}) {
		return vault, fmt.Errorf("config: VaultAddress must be non-zero")
	}
	return vault, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:         filepath.Join(filepath.Dir(path), "data"),
		Backend:         defaultBackend,
		SettlementToken: defaultToken,
		VaultAddress:    "0x0000000000000000000000000000000000000a0c",
		MetricsAddress:  "127.0.0.1:9460",
		DefaultPageSize: defaultPageSize,
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
