package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"vexi/apps/worker/internal/config"
)

type IntegrationSuite struct {
	T        *testing.T
	DB       *sql.DB
	DSN      string
	RedisURL string

	// Containers
	pgContainer   *postgres.PostgresContainer
	redisTeardown func()
}

func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	return &IntegrationSuite{T: t}
}

// MigrationPath points at the repository's migrations directory.
func MigrationPath() string {
	_, b, _, _ := runtime.Caller(0)
	basepath := filepath.Dir(b)
	return fmt.Sprintf("file://%s/../../migrations", basepath)
}

func (s *IntegrationSuite) Setup() {
	ctx := context.Background()

	// 1. Postgres with the vector extension available
	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("vexi_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(s.T, err)
	s.pgContainer = pgContainer

	s.DSN, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(s.T, err)

	s.DB, err = sql.Open("postgres", s.DSN)
	require.NoError(s.T, err)

	m, err := migrate.New(MigrationPath(), s.DSN)
	require.NoError(s.T, err)
	require.NoError(s.T, m.Up())

	// 2. Redis
	s.RedisURL, s.redisTeardown = StartRedis(s.T)
}

// GetAppConfig returns a configuration pointing at the suite's containers.
func (s *IntegrationSuite) GetAppConfig() *config.Config {
	return &config.Config{
		DatabaseURL:                s.DSN,
		QueueBackend:               config.QueueBackendRedis,
		QueueName:                  config.DefaultQueueName,
		RedisURL:                   s.RedisURL,
		QueuePopTimeoutSeconds:     1,
		QueueErrorDelaySeconds:     1,
		EmbeddingProvider:          config.ProviderOpenAI,
		ChunkSize:                  500,
		WorkerCount:                1,
		MigrationPath:              MigrationPath(),
		JobLogPath:                 filepath.Join(s.T.TempDir(), "jobs.log"),
		BootstrapRetryAttempts:     3,
		BootstrapRetryDelaySeconds: 1,
	}
}

func (s *IntegrationSuite) Teardown() {
	ctx := context.Background()
	if s.DB != nil {
		s.DB.Close()
	}
	if s.pgContainer != nil {
		s.pgContainer.Terminate(ctx)
	}
	if s.redisTeardown != nil {
		s.redisTeardown()
	}
}

// StartRedis runs a throwaway Redis and returns its redis:// URL.
func StartRedis(t *testing.T) (string, func()) {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s/0", host, port.Port()), func() {
		redisC.Terminate(ctx)
	}
}

// StartNSQ runs a standalone nsqd and returns its TCP and HTTP addresses.
func StartNSQ(t *testing.T) (tcpAddr, httpAddr string, teardown func()) {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "nsqio/nsq:v1.3.0",
		ExposedPorts: []string{"4150/tcp", "4151/tcp"},
		Cmd:          []string{"/nsqd", "--broadcast-address=localhost"},
		WaitingFor:   wait.ForLog("TCP: listening on").WithStartupTimeout(60 * time.Second),
	}
	nsqC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := nsqC.Host(ctx)
	require.NoError(t, err)
	tcpPort, err := nsqC.MappedPort(ctx, "4150")
	require.NoError(t, err)
	httpPort, err := nsqC.MappedPort(ctx, "4151")
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, tcpPort.Port()),
		fmt.Sprintf("%s:%s", host, httpPort.Port()),
		func() { nsqC.Terminate(ctx) }
}
