package backup

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultestim/vaultestim/internal/apperr"
	"github.com/vaultestim/vaultestim/internal/collection"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string
	putErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
}

func (m *memoryStore) Put(_ context.Context, key string, body []byte, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[key] = append([]byte(nil), body...)
	m.meta[key] = metadata
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, nil, apperr.Errorf(apperr.NotFound, "test", "no %s", key)
	}
	return b, m.meta[key], nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Object
	for k, b := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Object{Key: k, Size: int64(len(b))})
		}
	}
	return out, nil
}

type fakeSource struct {
	rows map[string][]collection.Entry
	err  error
}

func (f fakeSource) ListByUser(_ context.Context, userID string) ([]collection.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[userID], nil
}

func (f fakeSource) ListUserIDs(context.Context) ([]string, error) {
	var ids []string
	for id := range f.rows {
		ids = append(ids, id)
	}
	return ids, nil
}

func newTestManager(store ObjectStore, src Source, at time.Time) *Manager {
	m := NewManager(store, src, "/backups/", nil)
	m.now = func() time.Time { return at }
	return m
}

func TestManager_Backup(t *testing.T) {
	store := newMemoryStore()
	src := fakeSource{rows: map[string][]collection.Entry{
		"u1": {collection.NewEntry("u1", "sv1-1", ""), collection.NewEntry("u1", "sv1-2", "Holo")},
	}}
	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	m := newTestManager(store, src, at)

	info, err := m.Backup(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "backups/u1/20250601T123000Z.json", info.Key)
	assert.Equal(t, 2, info.Entries)
	assert.Equal(t, info.Checksum, store.meta[info.Key][ChecksumKey])

	exp, err := m.Load(context.Background(), info.Key)
	require.NoError(t, err)
	assert.Equal(t, "u1", exp.UserID)
	assert.Len(t, exp.Entries, 2)
	assert.True(t, exp.ExportedAt.Equal(at))
}

func TestManager_Backup_RequiresUser(t *testing.T) {
	m := newTestManager(newMemoryStore(), fakeSource{}, time.Now())
	_, err := m.Backup(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.Invalid))
}

func TestManager_Backup_UploadFailure(t *testing.T) {
	store := newMemoryStore()
	store.putErr = errors.New("bucket gone")
	m := newTestManager(store, fakeSource{rows: map[string][]collection.Entry{"u1": nil}}, time.Now())

	_, err := m.Backup(context.Background(), "u1")
	assert.True(t, apperr.Is(err, apperr.UpstreamUnavailable))
}

func TestManager_Load_ChecksumMismatch(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(store, fakeSource{rows: map[string][]collection.Entry{"u1": nil}}, time.Now())

	info, err := m.Backup(context.Background(), "u1")
	require.NoError(t, err)
	store.objects[info.Key] = []byte(`{"userId":"u1","entries":[]}`)

	_, err = m.Load(context.Background(), info.Key)
	assert.True(t, apperr.Is(err, apperr.DataIntegrity))
}

func TestManager_ListNewestFirst(t *testing.T) {
	store := newMemoryStore()
	src := fakeSource{rows: map[string][]collection.Entry{"u1": nil}}
	m := newTestManager(store, src, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err := m.Backup(context.Background(), "u1")
	require.NoError(t, err)
	m.now = func() time.Time { return time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC) }
	_, err = m.Backup(context.Background(), "u1")
	require.NoError(t, err)

	objs, err := m.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Contains(t, objs[0].Key, "20250201")
}

func TestManager_BackupAll(t *testing.T) {
	store := newMemoryStore()
	src := fakeSource{rows: map[string][]collection.Entry{"u1": nil, "u2": nil}}
	m := newTestManager(store, src, time.Now())

	n, err := m.BackupAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, store.objects, 2)
}

func TestScheduler(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(store, fakeSource{rows: map[string][]collection.Entry{"u1": nil}}, time.Now())
	s := NewScheduler(m, 10*time.Millisecond)

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return s.Status().RunCount > 0 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop())

	st := s.Status()
	assert.False(t, st.Running)
	assert.Zero(t, st.FailureCount)
	assert.Error(t, s.Stop())
}

func TestScheduler_RequiresInterval(t *testing.T) {
	s := NewScheduler(newTestManager(newMemoryStore(), fakeSource{}, time.Now()), 0)
	assert.Error(t, s.Start(context.Background()))
}
