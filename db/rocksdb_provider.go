//go:build rocksdb
// +build rocksdb

package db

import (
	"fmt"
	"sync"

	"github.com/linxGnu/grocksdb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type RocksDBProvider struct {
	once sync.Once
	db   *grocksdb.DB
	ro   *grocksdb.ReadOptions
	wo   *grocksdb.WriteOptions
}

// NewRocksDBProvider opens (or creates) the database in directory. Writes are
// synced so an appended block survives a crash right after Put returns.
func NewRocksDBProvider(directory string) (IterableProvider, error) {
	opts := grocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)
	defer opts.Destroy()

	db, err := grocksdb.OpenDb(opts, directory)
	if err != nil {
		return nil, fmt.Errorf("failed to open RocksDB at %s: %w", directory, err)
	}

	wo := grocksdb.NewDefaultWriteOptions()
	wo.SetSync(true)
	return &RocksDBProvider{db: db, ro: grocksdb.NewDefaultReadOptions(), wo: wo}, nil
}

func (p *RocksDBProvider) Get(key []byte) ([]byte, error) {
	value, err := p.db.GetBytes(p.ro, key)
	if err != nil {
		return nil, fmt.Errorf("rocksdb get: %w", err)
	}
	return value, nil
}

func (p *RocksDBProvider) Put(key, value []byte) error {
	return p.db.Put(p.wo, key, value)
}

// Close is idempotent.
func (p *RocksDBProvider) Close() error {
	p.once.Do(func() {
		p.ro.Destroy()
		p.wo.Destroy()
		p.db.Close()
	})
	return nil
}

func (p *RocksDBProvider) IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error {
	ro := grocksdb.NewDefaultReadOptions()
	defer ro.Destroy()
	if limit := util.BytesPrefix(prefix).Limit; limit != nil {
		ro.SetIterateUpperBound(limit)
	}

	it := p.db.NewIterator(ro)
	defer it.Close()

	for it.Seek(prefix); it.Valid(); it.Next() {
		k := it.Key()
		v := it.Value()
		kdata := append([]byte(nil), k.Data()...)
		vdata := append([]byte(nil), v.Data()...)
		k.Free()
		v.Free()
		if !fn(kdata, vdata) {
			break
		}
	}
	return it.Err()
}
