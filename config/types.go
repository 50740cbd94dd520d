package config

// NodeConfig represents the local node's configuration
type NodeConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// GenesisConfig holds the configuration from genesis.yml
type GenesisConfig struct {
	ChainName      string     `yaml:"chain_name"`
	GenesisPayload string     `yaml:"genesis_payload"`
	SelfNode       NodeConfig `yaml:"self_node"`
}

// ConfigFile is the top-level structure for genesis.yml
type ConfigFile struct {
	Config GenesisConfig `yaml:"config"`
}

type MempoolConfig struct {
	ValidationWindowSeconds int `ini:"validation_window_seconds"`
}

type NotaryConfig struct {
	MaxStoryBytes int `ini:"max_story_bytes"`
}

type APIConfig struct {
	RateLimitMaxRequests int `ini:"rate_limit_max_requests"`
	RateLimitWindowMs    int `ini:"rate_limit_window_ms"`
}
