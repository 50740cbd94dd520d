//go:build !rocksdb
// +build !rocksdb

package db

import "github.com/pkg/errors"

func NewRocksDBProvider(directory string) (IterableProvider, error) {
	return nil, errors.Wrapf(ErrRocksDBUnavailable, "open %s", directory)
}
