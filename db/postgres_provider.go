package db

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/mezonai/starnotary/logx"
)

const defaultPostgresTable = "starnotary_kv"

// PostgresProvider keeps key/value pairs in a single bytea table. Keys are
// compared bytewise by Postgres, which matches the ordering of the other providers.
type PostgresProvider struct {
	once  sync.Once
	db    *sql.DB
	table string
}

// NewPostgresProvider connects to databaseURL with a few retries and makes sure
// the backing table exists.
func NewPostgresProvider(databaseURL string) (IterableProvider, error) {
	const maxRetries = 5
	const retryDelay = time.Second * 2

	var (
		conn    *sql.DB
		lastErr error
	)
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			logx.Warn("POSTGRES", fmt.Sprintf("Retrying connection (attempt %d/%d) after error: %v", attempt+1, maxRetries, lastErr))
			time.Sleep(retryDelay)
		}

		var err error
		conn, err = sql.Open("postgres", databaseURL)
		if err != nil {
			lastErr = err
			continue
		}
		if err := conn.Ping(); err != nil {
			_ = conn.Close()
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return nil, errors.Wrapf(lastErr, "failed to connect to postgres after %d attempts", maxRetries)
	}

	p := &PostgresProvider{db: conn, table: defaultPostgresTable}
	createTableSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		k BYTEA PRIMARY KEY,
		v BYTEA NOT NULL
	)`, p.table)
	if _, err := conn.Exec(createTableSQL); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to create key/value table")
	}
	return p, nil
}

// Get retrieves a value by key
func (p *PostgresProvider) Get(key []byte) ([]byte, error) {
	var value []byte
	err := p.db.QueryRow(fmt.Sprintf(`SELECT v FROM %s WHERE k = $1`, p.table), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put stores a key-value pair
func (p *PostgresProvider) Put(key, value []byte) error {
	_, err := p.db.Exec(fmt.Sprintf(`INSERT INTO %s (k, v) VALUES ($1, $2)
		ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v`, p.table), key, value)
	return err
}

// Close closes the database connection
func (p *PostgresProvider) Close() error {
	var err error
	p.once.Do(func() {
		err = p.db.Close()
	})
	return err
}

// IteratePrefix streams rows whose key starts with prefix, ordered by key.
func (p *PostgresProvider) IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error {
	rows, err := p.db.Query(fmt.Sprintf(`SELECT k, v FROM %s WHERE substring(k from 1 for $1) = $2 ORDER BY k ASC`, p.table),
		len(prefix), prefix)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		if !fn(k, v) {
			break
		}
	}
	return rows.Err()
}
