package database

import (
	"fmt"

	"github.com/alexedwards/scs/postgresstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"
)

// sessionDialect pairs the scs session table of one database with the store
// that reads it. sqlite3store keeps expiry as a julian day number,
// postgresstore as a timestamp.
type sessionDialect struct {
	ddl   []string
	store func(db *gorm.DB) (scs.Store, error)
}

var sessionDialects = map[string]sessionDialect{
	"postgres": {
		ddl: []string{
			`CREATE TABLE IF NOT EXISTS sessions (token TEXT PRIMARY KEY, data BYTEA NOT NULL, expiry TIMESTAMPTZ NOT NULL)`,
			`CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions (expiry)`,
		},
		store: func(db *gorm.DB) (scs.Store, error) {
			sqlDB, err := db.DB()
			if err != nil {
				return nil, err
			}
			return postgresstore.New(sqlDB), nil
		},
	},
	"sqlite": {
		ddl: []string{
			`CREATE TABLE IF NOT EXISTS sessions (token TEXT PRIMARY KEY, data BLOB NOT NULL, expiry REAL NOT NULL)`,
			`CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions (expiry)`,
		},
		store: func(db *gorm.DB) (scs.Store, error) {
			sqlDB, err := db.DB()
			if err != nil {
				return nil, err
			}
			return sqlite3store.New(sqlDB), nil
		},
	},
}

func sessionDialectFor(db *gorm.DB) (sessionDialect, error) {
	name := db.Dialector.Name()
	d, ok := sessionDialects[name]
	if !ok {
		return sessionDialect{}, fmt.Errorf("unsupported database type: %s", name)
	}
	return d, nil
}

func createSessionsTable(db *gorm.DB) error {
	d, err := sessionDialectFor(db)
	if err != nil {
		return err
	}
	for _, stmt := range d.ddl {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// SessionStore returns the scs store for the sessions table Migrate created
// in db.
func SessionStore(db *gorm.DB) (scs.Store, error) {
	d, err := sessionDialectFor(db)
	if err != nil {
		return nil, err
	}
	return d.store(db)
}
