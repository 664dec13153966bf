package provision

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	svcboot "github.com/masegraye/svcboot-go"
	"github.com/masegraye/svcboot-go/resource/sqlite"
	"github.com/masegraye/svcboot-go/secrets"
	"go.uber.org/zap"
)

var deploymentIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// LocalOption configures a Local factory.
type LocalOption func(*Local)

// WithLogger sets the logger used for provisioning events.
func WithLogger(logger *zap.Logger) LocalOption {
	return func(l *Local) {
		l.logger = logger
	}
}

// Local provisions one SQLite database file per deployment under a data
// directory. The same deployment ID always maps to the same file, which is
// created on first request. Secrets live in that database's secrets table.
type Local struct {
	dir          string
	deploymentID string
	logger       *zap.Logger

	mu sync.Mutex
	db *sql.DB
}

var _ svcboot.Factory = (*Local)(nil)

// NewLocal creates a Local factory for deploymentID under dir. Nothing is
// created on disk until the first request.
func NewLocal(dir, deploymentID string, opts ...LocalOption) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: data dir is required", svcboot.ErrInvalidConfig)
	}
	if !deploymentIDPattern.MatchString(deploymentID) {
		return nil, fmt.Errorf("%w: invalid deployment id %q", svcboot.ErrInvalidConfig, deploymentID)
	}

	l := &Local{
		dir:          filepath.Clean(dir),
		deploymentID: deploymentID,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Path returns the database file for the deployment.
func (l *Local) Path() string {
	return filepath.Join(l.dir, l.deploymentID+".db")
}

// DSN returns the connection string for the deployment's database.
func (l *Local) DSN() string {
	return l.Path() + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// SQLConnectionString provisions the deployment database if needed and
// returns its connection string.
func (l *Local) SQLConnectionString(ctx context.Context) (string, error) {
	if _, err := l.provision(ctx); err != nil {
		return "", err
	}
	return l.DSN(), nil
}

// Secret reads key from the deployment's secrets table.
func (l *Local) Secret(ctx context.Context, key string) (string, error) {
	db, err := l.provision(ctx)
	if err != nil {
		return "", err
	}
	return secrets.FromDB(db).Get(ctx, key)
}

// PutSecret stores a secret for the deployment.
func (l *Local) PutSecret(ctx context.Context, key, value string) error {
	db, err := l.provision(ctx)
	if err != nil {
		return err
	}
	return secrets.Put(ctx, db, key, value)
}

// Close releases the factory's own handle on the database.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func (l *Local) provision(ctx context.Context) (*sql.DB, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db != nil {
		return l.db, nil
	}

	if err := os.MkdirAll(l.dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	_, statErr := os.Stat(l.Path())
	created := os.IsNotExist(statErr)

	db, err := sqlite.OpenDSN(ctx, l.DSN())
	if err != nil {
		return nil, err
	}
	if err := secrets.Ensure(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	l.db = db

	l.logger.Info("deployment database ready",
		zap.String("deployment_id", l.deploymentID),
		zap.String("path", l.Path()),
		zap.Bool("created", created))
	return db, nil
}
