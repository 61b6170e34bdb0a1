package state

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ----------------------------------------------------------------------------
// Postgres
// ----------------------------------------------------------------------------

type fakeRow struct {
	data []byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*[]byte) = r.data
	return nil
}

// fakeDB records statements and keeps upserted documents by id.
type fakeDB struct {
	mu      sync.Mutex
	docs    map[string][]byte
	stmts   []string
	execErr error
}

func newFakeDB() *fakeDB { return &fakeDB{docs: make(map[string][]byte)} }

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stmts = append(f.stmts, strings.TrimSpace(sql))
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	if strings.Contains(sql, "INSERT INTO sync_state") {
		f.docs[args[0].(string)] = append([]byte(nil), args[1].([]byte)...)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.docs[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{data: data}
}

func TestPostgresBackend_Contract(t *testing.T) {
	backendContract(t, NewPostgresBackend(newFakeDB(), ""))
}

func TestPostgresBackend_DocumentID(t *testing.T) {
	db := newFakeDB()
	ctx := context.Background()

	a := NewPostgresBackend(db, "office-a")
	b := NewPostgresBackend(db, "office-b")
	require.NoError(t, a.Write(ctx, []byte(`{"a":1}`)))

	_, err := b.Read(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, db.docs, "office-a")
}

func TestPostgresBackend_EnsureSchema(t *testing.T) {
	db := newFakeDB()
	require.NoError(t, NewPostgresBackend(db, "").EnsureSchema(context.Background()))
	require.Len(t, db.stmts, 1)
	assert.True(t, strings.HasPrefix(db.stmts[0], "CREATE TABLE IF NOT EXISTS sync_state"))

	db.execErr = errors.New("permission denied")
	err := NewPostgresBackend(db, "").EnsureSchema(context.Background())
	assert.ErrorIs(t, err, db.execErr)
}

// ----------------------------------------------------------------------------
// SQLite
// ----------------------------------------------------------------------------

func TestSQLiteBackend_Contract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	b, err := OpenSQLite(context.Background(), path, "")
	require.NoError(t, err)
	defer b.Close()

	backendContract(t, b)
}

func TestSQLiteBackend_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	b, err := OpenSQLite(ctx, path, "default")
	require.NoError(t, err)
	require.NoError(t, NewStore(b, nil).Save(ctx, sampleDocument()))
	require.NoError(t, b.Close())

	b, err = OpenSQLite(ctx, path, "default")
	require.NoError(t, err)
	defer b.Close()

	doc, err := NewStore(b, nil).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleDocument(), doc)
}

// ----------------------------------------------------------------------------
// Redis
// ----------------------------------------------------------------------------

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newFakeRedis() *fakeRedis { return &fakeRedis{data: make(map[string]string)} }

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func TestRedisBackend_Contract(t *testing.T) {
	backendContract(t, newRedisBackend(newFakeRedis(), ""))
}

func TestRedisBackend_Key(t *testing.T) {
	rdb := newFakeRedis()
	b := newRedisBackend(rdb, "")
	require.NoError(t, b.Write(context.Background(), []byte(`{}`)))
	assert.Contains(t, rdb.data, DefaultRedisKey)
}

func TestRedisBackend_Errors(t *testing.T) {
	rdb := newFakeRedis()
	rdb.err = errors.New("READONLY You can't write against a read only replica")
	b := newRedisBackend(rdb, "k")

	_, err := b.Read(context.Background())
	assert.ErrorIs(t, err, rdb.err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, b.Write(context.Background(), []byte(`{}`)), rdb.err)
}
