package testutils

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"email-marketing-backend/internal/config"
	"email-marketing-backend/internal/database"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for readiness ping
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

const (
	postgresUser     = "marketing"
	postgresPassword = "marketing"
	postgresDB       = "marketing_test"
)

// workspaceTables are truncated between tests, children first
var workspaceTables = []string{
	"email_sends",
	"campaigns",
	"email_templates",
	"contacts",
	"user_roles",
	"role_permissions",
	"users",
	"roles",
	"permissions",
	"organizations",
}

// one Postgres container per test binary
var (
	pgOnce     sync.Once
	pgErr      error
	pgPool     *dockertest.Pool
	pgResource *dockertest.Resource
	pgDB       *gorm.DB
	pgConfig   *config.Config
)

// BaseTestSuite gives integration suites a migrated Postgres database
type BaseTestSuite struct {
	suite.Suite
	DB     *gorm.DB
	Config *config.Config
}

// SetupTestSuite starts the shared Postgres container on first use.
// Set TEST_POSTGRES_TAG to pin a different image tag.
func SetupTestSuite(t *testing.T) *BaseTestSuite {
	pgOnce.Do(func() { pgErr = startPostgres() })
	if pgErr != nil {
		t.Fatalf("failed to start postgres container: %v", pgErr)
	}
	return &BaseTestSuite{DB: pgDB, Config: pgConfig}
}

// CleanupSharedContainer closes the database and purges the container.
// Call it once from the package's TestMain.
func CleanupSharedContainer() {
	if pgDB != nil {
		if sqlDB, err := pgDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
		pgDB = nil
	}
	if pgPool != nil && pgResource != nil {
		if err := pgPool.Purge(pgResource); err != nil {
			logrus.WithError(err).Warn("Could not purge postgres container")
		}
		pgPool, pgResource = nil, nil
	}
}

func (s *BaseTestSuite) SetupTest()    { s.CleanTestDB() }
func (s *BaseTestSuite) TearDownTest() { s.CleanTestDB() }

// TeardownTestSuite leaves the container running for the next suite
func (s *BaseTestSuite) TeardownTestSuite() { s.CleanTestDB() }

// CleanTestDB empties every workspace table
func (s *BaseTestSuite) CleanTestDB() {
	if s.DB == nil {
		return
	}
	m := s.DB.Migrator()
	for _, table := range workspaceTables {
		if m.HasTable(table) {
			s.DB.Exec(`TRUNCATE TABLE "` + table + `" RESTART IDENTITY CASCADE`)
		}
	}
}

func startPostgres() error {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return fmt.Errorf("connect to docker: %w", err)
	}
	pool.MaxWait = 2 * time.Minute
	pgPool = pool

	tag := os.Getenv("TEST_POSTGRES_TAG")
	if tag == "" {
		tag = "16-alpine"
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        tag,
		Env: []string{
			"POSTGRES_USER=" + postgresUser,
			"POSTGRES_PASSWORD=" + postgresPassword,
			"POSTGRES_DB=" + postgresDB,
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return fmt.Errorf("run postgres: %w", err)
	}
	pgResource = resource

	dsn := fmt.Sprintf("postgres://%s:%s@127.0.0.1:%s/%s?sslmode=disable",
		postgresUser, postgresPassword, resource.GetPort("5432/tcp"), postgresDB)

	if err := pool.Retry(func() error {
		std, err := sql.Open("pgx", dsn)
		if err != nil {
			return err
		}
		defer std.Close()
		return std.Ping()
	}); err != nil {
		return fmt.Errorf("wait for postgres: %w", err)
	}

	db, err := database.Initialize(dsn, &database.Options{MaxOpenConns: 20, MaxIdleConns: 5})
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	pgDB = db
	pgConfig = &config.Config{
		DatabaseURL:     dsn,
		Environment:     "test",
		LogLevel:        "debug",
		TokenTTLMinutes: 60,
		QueueBackend:    "memory",
		MailProvider:    "log",
	}
	logrus.WithField("tag", tag).Info("Postgres test container ready")
	return nil
}
