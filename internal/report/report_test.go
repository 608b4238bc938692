package report

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"care-conversations-go/internal/logger"
	"care-conversations-go/internal/storage"
)

type fakeStore struct {
	users map[string]storage.Stats
	fail  map[string]bool
}

func (f *fakeStore) Users() ([]string, error) {
	out := make([]string, 0, len(f.users))
	for u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeStore) Stats(userID string) (storage.Stats, error) {
	if f.fail[userID] {
		return storage.Stats{}, errors.New("unreadable")
	}
	return f.users[userID], nil
}

func TestBuild_RendersRows(t *testing.T) {
	store := &fakeStore{users: map[string]storage.Stats{
		"alice": {
			TotalRecords: 2,
			TotalBytes:   300,
			AudioBytes:   100,
			PerPerson:    map[string]storage.PersonStats{"Mary": {Records: 2, Bytes: 200}},
		},
	}}
	r := New(store, logger.New())

	f, err := r.Build()
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Users")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[1][0])
	assert.Equal(t, "2", rows[1][1])

	people, err := f.GetRows("People")
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, "Mary", people[1][1])
}

func TestBuild_SkipsFailingUser(t *testing.T) {
	store := &fakeStore{
		users: map[string]storage.Stats{
			"alice":  {TotalRecords: 1, PerPerson: map[string]storage.PersonStats{}},
			"broken": {},
		},
		fail: map[string]bool{"broken": true},
	}
	r := New(store, logger.New())

	f, err := r.Build()
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Users")
	require.NoError(t, err)
	assert.Len(t, rows, 2, "header plus the one readable user")
}

func TestWriteFile_RoundTrips(t *testing.T) {
	store := &fakeStore{users: map[string]storage.Stats{
		"alice": {TotalRecords: 1, PerPerson: map[string]storage.PersonStats{}},
	}}
	r := New(store, logger.New())

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, r.WriteFile(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Users")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
