package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/mezonai/starnotary/chain"
	"github.com/mezonai/starnotary/config"
	"github.com/mezonai/starnotary/logx"
	"github.com/mezonai/starnotary/store"
)

func nodeConfigPath() string {
	return filepath.Join(configDir, config.NodeFile)
}

func genesisConfigPath() string {
	return filepath.Join(configDir, config.GenesisFile)
}

// openChain opens the configured store and builds the engine over it. The
// caller owns the returned store and must close it.
func openChain(genesis *config.GenesisConfig) (*chain.Blockchain, store.BlockStore, error) {
	storeCfg, err := config.LoadStoreConfig(nodeConfigPath(), dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load store config: %w", err)
	}
	bs, err := store.CreateStore(storeCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", storeCfg.Type, err)
	}
	logx.Info("CMD", fmt.Sprintf("Opened %s store at %s", storeCfg.Type, storeCfg.Directory))

	var opts []chain.Option
	if genesis != nil {
		opts = append(opts, chain.WithGenesisPayload(genesis.GenesisPayload))
	}
	bc, err := chain.NewBlockchain(bs, opts...)
	if err != nil {
		bs.MustClose()
		return nil, nil, err
	}
	return bc, bs, nil
}
