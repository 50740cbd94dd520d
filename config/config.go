package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/mezonai/starnotary/block"
	"github.com/mezonai/starnotary/logx"
	"github.com/mezonai/starnotary/store"
)

const (
	GenesisFile = "genesis.yml"
	NodeFile    = "config.ini"
)

const (
	DefaultListenAddr              = ":8000"
	DefaultValidationWindowSeconds = 300
	DefaultMaxStoryBytes           = 500
	DefaultRateLimitMaxRequests    = 20
	DefaultRateLimitWindowMs       = 1000
)

// LoadGenesisConfig reads and parses the genesis.yml file
func LoadGenesisConfig(path string) (*GenesisConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cfgFile ConfigFile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	cfg := &cfgFile.Config
	if cfg.GenesisPayload == "" {
		cfg.GenesisPayload = block.GenesisSentinel
	}
	if cfg.SelfNode.ListenAddr == "" {
		cfg.SelfNode.ListenAddr = DefaultListenAddr
	}
	logx.Info("CONFIG", fmt.Sprintf("Loaded genesis config chain=%q listen=%s", cfg.ChainName, cfg.SelfNode.ListenAddr))
	return cfg, nil
}

func loadSection(path, section string, out interface{}) error {
	cfg, err := ini.Load(path)
	if err != nil {
		return err
	}
	return cfg.Section(section).MapTo(out)
}

// LoadStoreConfig reads the [store] section. A relative directory is resolved
// against dataDir when dataDir is set.
func LoadStoreConfig(path, dataDir string) (*store.StoreConfig, error) {
	storeCfg := &store.StoreConfig{Type: store.LevelDBStoreType, Directory: "blockstore"}
	if err := loadSection(path, "store", storeCfg); err != nil {
		return nil, err
	}
	if dataDir != "" && storeCfg.Directory != "" && !filepath.IsAbs(storeCfg.Directory) {
		storeCfg.Directory = filepath.Join(dataDir, storeCfg.Directory)
	}
	if err := storeCfg.Validate(); err != nil {
		return nil, err
	}
	return storeCfg, nil
}

func LoadMempoolConfig(path string) (*MempoolConfig, error) {
	mempoolCfg := &MempoolConfig{ValidationWindowSeconds: DefaultValidationWindowSeconds}
	if err := loadSection(path, "mempool", mempoolCfg); err != nil {
		return nil, err
	}
	if mempoolCfg.ValidationWindowSeconds <= 0 {
		return nil, fmt.Errorf("validation_window_seconds must be positive, got %d", mempoolCfg.ValidationWindowSeconds)
	}
	return mempoolCfg, nil
}

func (c *MempoolConfig) ValidationWindow() time.Duration {
	return time.Duration(c.ValidationWindowSeconds) * time.Second
}

func LoadNotaryConfig(path string) (*NotaryConfig, error) {
	notaryCfg := &NotaryConfig{MaxStoryBytes: DefaultMaxStoryBytes}
	if err := loadSection(path, "notary", notaryCfg); err != nil {
		return nil, err
	}
	if notaryCfg.MaxStoryBytes <= 0 {
		return nil, fmt.Errorf("max_story_bytes must be positive, got %d", notaryCfg.MaxStoryBytes)
	}
	return notaryCfg, nil
}

func LoadAPIConfig(path string) (*APIConfig, error) {
	apiCfg := &APIConfig{
		RateLimitMaxRequests: DefaultRateLimitMaxRequests,
		RateLimitWindowMs:    DefaultRateLimitWindowMs,
	}
	if err := loadSection(path, "api", apiCfg); err != nil {
		return nil, err
	}
	return apiCfg, nil
}

func (c *APIConfig) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMs) * time.Millisecond
}
