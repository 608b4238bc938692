package storage

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care-conversations-go/internal/logger"
	"care-conversations-go/internal/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(t.TempDir(), logger.New())
	require.NoError(t, err)
	return e
}

func TestSanitizeSegment(t *testing.T) {
	got := SanitizeSegment("John/Doe*?")
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9._-]+$`), got)
	assert.Equal(t, got, SanitizeSegment("John/Doe*?"), "mapping must be idempotent per raw name")
	assert.Equal(t, got, SanitizeSegment(got))

	assert.Equal(t, "unknown", SanitizeSegment(""))
	assert.Equal(t, "unknown", SanitizeSegment(".."))
	assert.Equal(t, "Mary_Smith", SanitizeSegment("Mary Smith"))
}

func TestSaveAndGet(t *testing.T) {
	e := newTestEngine(t)

	saved, err := e.Save("user1", types.ConversationRecord{
		PersonName: "Mary",
		Transcript: "hello",
		Summary:    "a greeting",
		Status:     types.StatusCompleted,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "user1", saved.UserID)
	assert.False(t, saved.Timestamp.IsZero())

	got, err := e.Get("user1", saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Transcript)
	assert.Equal(t, "Mary", got.PersonName)
}

func TestSave_LayoutOnDisk(t *testing.T) {
	dir := t.TempDir()
	e, err := New(dir, logger.New())
	require.NoError(t, err)

	saved, err := e.Save("u1", types.ConversationRecord{PersonName: "John/Doe*?"})
	require.NoError(t, err)

	want := filepath.Join(dir, "conversations", "u1", SanitizeSegment("John/Doe*?"), saved.ID+".json")
	_, statErr := os.Stat(want)
	assert.NoError(t, statErr)
}

func TestSave_RejectsDuplicateID(t *testing.T) {
	e := newTestEngine(t)
	rec := types.ConversationRecord{ID: "fixed-id", PersonName: "Mary"}
	_, err := e.Save("u1", rec)
	require.NoError(t, err)
	_, err = e.Save("u1", rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestGet_NotFound(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Get("u1", "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.Save("u1", types.ConversationRecord{PersonName: "Mary"})
	require.NoError(t, err)
	_, err = e.Get("u1", "still-nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_SortedDescWithPaging(t *testing.T) {
	e := newTestEngine(t)
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		_, err := e.Save("u1", types.ConversationRecord{
			PersonName: "Mary",
			Transcript: "t",
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	res, err := e.List("u1", "", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.True(t, res.HasMore)
	require.Len(t, res.Records, 2)
	assert.True(t, res.Records[0].Timestamp.After(res.Records[1].Timestamp))

	rest, err := e.List("u1", "", 10, 2)
	require.NoError(t, err)
	assert.Len(t, rest.Records, 3)
	assert.False(t, rest.HasMore)
}

func TestList_PersonFilter(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Save("u1", types.ConversationRecord{PersonName: "Mary"})
	require.NoError(t, err)
	_, err = e.Save("u1", types.ConversationRecord{PersonName: "John"})
	require.NoError(t, err)

	res, err := e.List("u1", "Mary", 0, 0)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Mary", res.Records[0].PersonName)
}

func TestList_SkipsMalformedFiles(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < 2; i++ {
		_, err := e.Save("u1", types.ConversationRecord{PersonName: "Mary"})
		require.NoError(t, err)
	}
	corrupt := filepath.Join(e.partitionDir("u1", "Mary"), "broken.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("this is not json"), 0o644))

	res, err := e.List("u1", "", 0, 0)
	require.NoError(t, err, "one corrupt file must not fail the listing")
	assert.Equal(t, 2, res.Total)
	assert.Len(t, res.Records, 2)
}

func TestList_UnknownUserEmpty(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.List("ghost", "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Zero(t, res.Total)
}

func TestDelete_RemovesRecordAndAudio(t *testing.T) {
	e := newTestEngine(t)
	audioPath, err := e.SaveAudio("u1", "visit.wav", []byte("RIFF...."))
	require.NoError(t, err)

	saved, err := e.Save("u1", types.ConversationRecord{PersonName: "Mary", AudioPath: audioPath})
	require.NoError(t, err)

	require.NoError(t, e.Delete("u1", saved.ID))
	_, err = e.Get("u1", saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, statErr := os.Stat(audioPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDelete_NotFoundIsError(t *testing.T) {
	e := newTestEngine(t)
	assert.ErrorIs(t, e.Delete("u1", "missing"), ErrNotFound)
}

func TestSaveAudio_NoSilentOverwrite(t *testing.T) {
	e := newTestEngine(t)
	p1, err := e.SaveAudio("u1", "same.wav", []byte("one"))
	require.NoError(t, err)
	p2, err := e.SaveAudio("u1", "same.wav", []byte("two"))
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)

	data, err := os.ReadFile(p1)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestUpdateNotes_OnlyMutableFields(t *testing.T) {
	e := newTestEngine(t)
	saved, err := e.Save("u1", types.ConversationRecord{PersonName: "Mary", Transcript: "original"})
	require.NoError(t, err)

	updated, err := e.UpdateNotes("u1", saved.ID, "remember the flowers", map[string]string{"device": "tablet"})
	require.NoError(t, err)
	assert.Equal(t, "remember the flowers", updated.Notes)
	assert.Equal(t, "original", updated.Transcript)

	got, err := e.Get("u1", saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "remember the flowers", got.Notes)
	assert.Equal(t, "tablet", got.Metadata["device"])
}

func TestUsersAndWipe(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Save("alice", types.ConversationRecord{PersonName: "Mary"})
	require.NoError(t, err)
	_, err = e.Save("bob", types.ConversationRecord{PersonName: "John"})
	require.NoError(t, err)

	users, err := e.Users()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)

	require.NoError(t, e.WipeUser("alice"))
	users, err = e.Users()
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, users)
}
