//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hitoshi/todoman/internal/database"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "todoman",
				"POSTGRES_PASSWORD": "todoman",
				"POSTGRES_DB":       "todoman_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://todoman:todoman@%s:%s/todoman_test?sslmode=disable", host, port.Port())

	if err := database.RunMigrations(dsn); err != nil {
		panic(err)
	}

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestRepositories_AuthAndTasks(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := repository.NewPostgresUserRepo(db)
	sessions := repository.NewPostgresSessionRepo(db, repository.SessionConfig{Lifetime: time.Hour})
	tasks := repository.NewPostgresTaskRepo(db)
	tags := repository.NewPostgresTagRepo(db)

	alice, err := users.Create(ctx, "alice@example.com", "Alice", "hash")
	require.NoError(t, err)
	bob, err := users.Create(ctx, "bob@example.com", "Bob", "hash")
	require.NoError(t, err)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := users.Create(ctx, "alice@example.com", "Other", "hash")
		require.ErrorIs(t, err, model.ErrDuplicateIdentity)

		exists, err := users.EmailExists(ctx, "alice@example.com")
		require.NoError(t, err)
		require.True(t, exists)
	})

	t.Run("session lifecycle", func(t *testing.T) {
		s, err := sessions.Create(ctx, alice.ID, "token-alice")
		require.NoError(t, err)

		found, err := sessions.FindByToken(ctx, "token-alice")
		require.NoError(t, err)
		require.NotNil(t, found)
		require.Equal(t, s.ID, found.ID)

		ok, err := sessions.Deactivate(ctx, "token-alice")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = sessions.Deactivate(ctx, "token-alice")
		require.NoError(t, err)
		require.False(t, ok)

		found, err = sessions.FindByToken(ctx, "token-alice")
		require.NoError(t, err)
		require.Nil(t, found)
	})

	t.Run("sweep expired", func(t *testing.T) {
		_, err := sessions.Create(ctx, bob.ID, "token-bob")
		require.NoError(t, err)

		sessions.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
		t.Cleanup(func() { sessions.SetClock(time.Now) })

		n, err := sessions.SweepExpired(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, int64(1))

		found, err := sessions.FindByToken(ctx, "token-bob")
		require.NoError(t, err)
		require.Nil(t, found)
	})

	t.Run("tasks with tag filter", func(t *testing.T) {
		a, err := tags.Create(ctx, "a", "#111111")
		require.NoError(t, err)
		b, err := tags.Create(ctx, "b", "#222222")
		require.NoError(t, err)

		ta, err := tasks.Create(ctx, alice.ID, model.NewTask{Title: "tagged a", Status: model.TaskStatusPending, TagIDs: []int64{a.ID, 999999}})
		require.NoError(t, err)
		require.Len(t, ta.Tags, 1)
		tb, err := tasks.Create(ctx, alice.ID, model.NewTask{Title: "tagged b", Status: model.TaskStatusPending, TagIDs: []int64{b.ID}})
		require.NoError(t, err)
		_, err = tasks.Create(ctx, alice.ID, model.NewTask{Title: "untagged", Status: model.TaskStatusPending})
		require.NoError(t, err)
		_, err = tasks.Create(ctx, bob.ID, model.NewTask{Title: "bob's", Status: model.TaskStatusPending, TagIDs: []int64{a.ID}})
		require.NoError(t, err)

		got, err := tasks.List(ctx, model.TaskFilter{UserID: alice.ID, TagIDs: []int64{a.ID, b.ID}, Limit: 100})
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, tb.ID, got[0].ID)
		require.Equal(t, ta.ID, got[1].ID)

		updated, err := tasks.Update(ctx, ta.ID, model.TaskPatch{TagIDs: []int64{}, ReplaceTags: true})
		require.NoError(t, err)
		require.Empty(t, updated.Tags)

		deleted, err := tasks.Delete(ctx, tb.ID)
		require.NoError(t, err)
		require.True(t, deleted)

		gone, err := tasks.FindByID(ctx, tb.ID)
		require.NoError(t, err)
		require.Nil(t, gone)
	})
}
