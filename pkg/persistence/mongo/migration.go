package mongo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mongodb" // registers the mongodb:// database driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Migrator applies embedded JSON migrations. Each owner keeps its own version
// history in "<owner>_migrations".
type Migrator interface {
	Up(ctx context.Context, owner string, fsys fs.FS, dir string) error
}

type migrator struct {
	conf Config
	log  *zap.Logger
}

func newMigrator(conf Config, log *zap.Logger) Migrator {
	return &migrator{conf: conf, log: log}
}

func (m *migrator) Up(ctx context.Context, owner string, fsys fs.FS, dir string) error {
	if !m.conf.Migrations.Enabled {
		m.log.Debug("migrations disabled", zap.String("owner", owner))
		return nil
	}
	if owner == "" {
		return errors.New("migration owner is required")
	}
	if fsys == nil {
		return errors.New("migration filesystem is required")
	}

	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to open migrations for %s: %w", owner, err)
	}

	dbURL, err := migrationURL(m.conf, owner)
	if err != nil {
		return err
	}

	mi, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator for %s: %w", owner, err)
	}
	defer func() {
		if srcErr, dbErr := mi.Close(); srcErr != nil || dbErr != nil {
			m.log.Warn("failed to close migrator", zap.String("owner", owner), zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
		}
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			mi.GracefulStop <- true
		case <-done:
		}
	}()

	err = mi.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		m.log.Info("migrations up to date", zap.String("owner", owner))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply migrations for %s: %w", owner, err)
	}

	version, dirty, err := mi.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version for %s: %w", owner, err)
	}
	m.log.Info("migrations applied",
		zap.String("owner", owner),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))
	return nil
}

func migrationURL(conf Config, owner string) (string, error) {
	u, err := url.Parse(conf.BuildURI())
	if err != nil {
		return "", fmt.Errorf("invalid mongo uri: %w", err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/" + conf.Database
	}

	q := u.Query()
	q.Set("x-migrations-collection", owner+"_migrations")
	q.Set("x-advisory-locking", "true")
	q.Set("x-advisory-lock-timeout", strconv.Itoa(int(conf.Migrations.LockTimeout.Seconds())))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
