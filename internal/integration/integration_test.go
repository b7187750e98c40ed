package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"classroom-poll-service/internal/app"
	"classroom-poll-service/internal/domain"
	pgstore "classroom-poll-service/internal/infra/postgres"
	pgmigrations "classroom-poll-service/internal/infra/postgres/migrations"
	infraredis "classroom-poll-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

type discard struct{}

func (discard) Broadcast(domain.Event)    {}
func (discard) Send(string, domain.Event) {}

// runPoll drives one poll through a classroom backed by store and returns it retired.
func runPoll(t *testing.T, ctx context.Context, store app.BlobStore, presence app.Presence) *app.Classroom {
	t.Helper()
	classroom := app.NewClassroom(app.NewHistory(store, nil), discard{}, app.WithPresence(presence))
	classroom.LoadHistory(ctx)

	if err := classroom.Join(ctx, "c1", "t1", "Ms T", "teacher"); err != nil {
		t.Fatalf("teacher join: %v", err)
	}
	if err := classroom.Join(ctx, "c2", "s1", "alice", "student"); err != nil {
		t.Fatalf("student join: %v", err)
	}
	poll, err := classroom.StartPoll(ctx, domain.PollDraft{ID: "p1", Question: "2 + 2?", Options: []string{"3", "4"}, TimeLimit: 30})
	if err != nil {
		t.Fatalf("start poll: %v", err)
	}
	if err := classroom.SubmitAnswer(ctx, poll.ID, "4", "s1", "alice"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !classroom.EndPoll(ctx, poll.ID) {
		t.Fatalf("expected poll to end")
	}
	return classroom
}

func assertReloaded(t *testing.T, ctx context.Context, store app.BlobStore) {
	t.Helper()
	fresh := app.NewHistory(store, nil)
	fresh.Load(ctx)
	all := fresh.All()
	if len(all) != 1 {
		t.Fatalf("expected 1 persisted poll, got %d", len(all))
	}
	if all[0].ID != "p1" || all[0].Answers["4"] != 1 || all[0].StudentAnswers["alice:s1"] != "4" {
		t.Fatalf("unexpected persisted poll %+v", all[0])
	}
}

func TestPostgresHistoryEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, cleanup := startPostgres(t, ctx)
	defer cleanup()
	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := pgstore.NewBlobStore(pool, "")
	runPoll(t, ctx, store, nil)
	assertReloaded(t, ctx, store)
}

func TestRedisHistoryAndPresenceEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, cleanup := startRedis(t, ctx)
	defer cleanup()

	client, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer client.Close()

	store := infraredis.NewBlobStore(client, "")
	classroom := runPoll(t, ctx, store, infraredis.NewPresence(client, 5*time.Minute))
	assertReloaded(t, ctx, store)

	role, err := client.Get(ctx, "classroom:participant:s1").Result()
	if err != nil || role != "student" {
		t.Fatalf("expected presence key for s1, got %q (%v)", role, err)
	}
	classroom.Kick(ctx, "s1")
	if n, _ := client.Exists(ctx, "classroom:participant:s1").Result(); n != 0 {
		t.Fatalf("expected presence cleared after kick")
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "poll", "POSTGRES_PASSWORD": "pollpass", "POSTGRES_DB": "polldb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://poll:pollpass@%s:%s/polldb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
