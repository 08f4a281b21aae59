package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/segyhp/guild-ledger/internal/config"
	customErrors "github.com/segyhp/guild-ledger/pkg/errors"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	tenantPlaceholder = "{tenant}"
	sqliteExt         = ".db"
)

var ErrClosed = errors.New("storage: manager closed")

var tenantRE = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know about.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Manager owns one database handle per tenant. Handles are opened and
// migrated lazily on first use and kept until Close.
type Manager struct {
	cfg    config.DatabaseConfig
	logger *slog.Logger

	mu     sync.Mutex
	dbs    map[string]*sqlx.DB
	closed bool
}

func NewManager(cfg config.DatabaseConfig, logger *slog.Logger) (*Manager, error) {
	switch cfg.Driver {
	case DriverSQLite:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	case DriverPostgres:
		if !strings.Contains(cfg.URL, tenantPlaceholder) {
			return nil, fmt.Errorf("postgres DSN must contain %s", tenantPlaceholder)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		cfg:    cfg,
		logger: logger,
		dbs:    make(map[string]*sqlx.DB),
	}, nil
}

// ValidateTenant rejects ids that cannot safely name a file or database.
func ValidateTenant(tenant string) error {
	if !tenantRE.MatchString(tenant) {
		return customErrors.WrapValidation("invalid tenant id %q", tenant)
	}
	return nil
}

// DB returns the migrated handle for tenant, opening it if needed.
func (m *Manager) DB(ctx context.Context, tenant string) (*sqlx.DB, error) {
	if err := ValidateTenant(tenant); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if db, ok := m.dbs[tenant]; ok {
		return db, nil
	}

	db, err := m.open(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tenant %s: %w", tenant, err)
	}

	m.dbs[tenant] = db
	m.logger.Debug("tenant database opened", "tenant", tenant, "driver", m.cfg.Driver)
	return db, nil
}

func (m *Manager) open(ctx context.Context, tenant string) (*sqlx.DB, error) {
	var dsn string
	switch m.cfg.Driver {
	case DriverSQLite:
		path := filepath.Join(m.cfg.DataDir, tenant+sqliteExt)
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	case DriverPostgres:
		dsn = strings.ReplaceAll(m.cfg.URL, tenantPlaceholder, tenant)
	}

	db, err := sqlx.ConnectContext(ctx, m.cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect tenant %s: %w", tenant, err)
	}

	if m.cfg.Driver == DriverSQLite {
		// A single writer connection keeps sqlite from returning SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(m.cfg.MaxOpenConns)
		db.SetMaxIdleConns(m.cfg.MaxIdleConns)
		db.SetConnMaxLifetime(m.cfg.ConnMaxLifetime)
	}

	return db, nil
}

// Tenants lists every known tenant: database files on disk for sqlite,
// the configured list for postgres. Tenants opened during this process
// are always included.
func (m *Manager) Tenants(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	switch m.cfg.Driver {
	case DriverSQLite:
		files, err := filepath.Glob(filepath.Join(m.cfg.DataDir, "*"+sqliteExt))
		if err != nil {
			return nil, fmt.Errorf("list tenant databases: %w", err)
		}
		for _, f := range files {
			name := strings.TrimSuffix(filepath.Base(f), sqliteExt)
			if ValidateTenant(name) == nil {
				seen[name] = struct{}{}
			}
		}
	case DriverPostgres:
		for _, t := range m.cfg.Tenants {
			if ValidateTenant(t) == nil {
				seen[t] = struct{}{}
			}
		}
	}

	m.mu.Lock()
	for t := range m.dbs {
		seen[t] = struct{}{}
	}
	m.mu.Unlock()

	tenants := make([]string, 0, len(seen))
	for t := range seen {
		tenants = append(tenants, t)
	}
	sort.Strings(tenants)
	return tenants, nil
}

// Run calls fn with the tenant database. When fn fails because a table or
// column is missing, the schema is migrated and fn is retried once.
func (m *Manager) Run(ctx context.Context, tenant string, fn func(db *sqlx.DB) error) error {
	db, err := m.DB(ctx, tenant)
	if err != nil {
		return err
	}

	err = fn(db)
	if !IsSchemaDrift(err) {
		return err
	}

	m.logger.Warn("schema drift detected, migrating", "tenant", tenant, "error", err)
	if migrateErr := Migrate(ctx, db); migrateErr != nil {
		return customErrors.WrapSchemaDrift(tenant, errors.Join(err, migrateErr))
	}

	err = fn(db)
	if IsSchemaDrift(err) {
		return customErrors.WrapSchemaDrift(tenant, err)
	}
	return err
}

// Ping checks every open tenant database.
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	dbs := make(map[string]*sqlx.DB, len(m.dbs))
	for t, db := range m.dbs {
		dbs[t] = db
	}
	m.mu.Unlock()

	for tenant, db := range dbs {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("tenant %s: %w", tenant, err)
		}
	}
	return nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for tenant, db := range m.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close tenant %s: %w", tenant, err))
		}
	}
	m.dbs = nil
	return errors.Join(errs...)
}
