package bolt

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shelf/internal/codec"
	"github.com/roach88/shelf/internal/ident"
	"github.com/roach88/shelf/internal/record"
	"github.com/roach88/shelf/internal/schema"
	"github.com/roach88/shelf/internal/store"
)

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open[record.Image](path, Options{Keys: Sequence{}})
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
	assert.Equal(t, path, s.Path())
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open[record.Image]("/nonexistent/dir/test.db", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrIO))
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open[record.Image]("  ", Options{})
	require.Error(t, err)
	assert.Equal(t, store.KindIO, store.KindOf(err))
}

func TestOpen_LockedByAnotherHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.db")

	first, err := Open[record.Verse](path, Options{})
	require.NoError(t, err)
	defer first.Close()

	_, err = Open[record.Verse](path, Options{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrIO))
}

func TestInsertGet_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestImages(t, Options{})

	img := testImage("Test Image")
	id, err := s.Insert(ctx, img)
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	got, found, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, img.WithKey(id).Equal(got), "got %+v", got)
}

func TestInsert_SequenceIDsAscend(t *testing.T) {
	ctx := context.Background()
	s := openTestImages(t, Options{})

	for i, want := range []string{"1", "2", "3"} {
		id, err := s.Insert(ctx, testImage("img"))
		require.NoError(t, err, "insert %d", i)
		assert.Equal(t, want, id)
	}
}

func TestInsert_ExplicitSequenceIDAdvancesCounter(t *testing.T) {
	ctx := context.Background()
	s := openTestImages(t, Options{})

	img := testImage("pinned")
	img.ID = 10
	id, err := s.Insert(ctx, img)
	require.NoError(t, err)
	assert.Equal(t, "10", id)

	next, err := s.Insert(ctx, testImage("next"))
	require.NoError(t, err)
	assert.Equal(t, "11", next)
}

func TestInsert_SequenceBeyondImageIDRange(t *testing.T) {
	ctx := context.Background()
	s := openTestImages(t, Options{})

	img := testImage("last")
	img.ID = math.MaxInt64
	id, err := s.Insert(ctx, img)
	require.NoError(t, err)
	assert.Equal(t, "9223372036854775807", id)

	_, err = s.Insert(ctx, testImage("overflow"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrInvalid))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(math.MaxInt64), all[0].ID)
}

func TestInsert_Upserts(t *testing.T) {
	ctx := context.Background()
	s := openTestVerses(t, Options{})

	id, err := s.Insert(ctx, testVerse("Genesis", 1, 1))
	require.NoError(t, err)

	updated := testVerse("Genesis", 1, 1).WithKey(id)
	updated.Text = "changed"
	again, err := s.Insert(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	got, found, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "changed", got.Text)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestInsert_UUIDKeysUnique(t *testing.T) {
	ctx := context.Background()
	s := openTestVerses(t, Options{Keys: UUID{}})

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := s.Insert(ctx, testVerse("Psalms", 23, i+1))
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %s", id)
		assert.Len(t, id, 36)
		seen[id] = true
	}
}

func TestInsert_NaturalKeyRequired(t *testing.T) {
	ctx := context.Background()
	s := openTestVerses(t, Options{Keys: Natural{}})

	_, err := s.Insert(ctx, testVerse("John", 3, 16))
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrInvalid))

	id, err := s.Insert(ctx, testVerse("John", 3, 16).WithKey("john-3-16"))
	require.NoError(t, err)
	assert.Equal(t, "john-3-16", id)
}

func TestInsert_NaturalKeysNormalized(t *testing.T) {
	ctx := context.Background()
	s := openTestVerses(t, Options{Keys: Natural{}})

	decomposed := "cafe\u0301"
	composed := "caf\u00e9"

	id, err := s.Insert(ctx, testVerse("Acts", 1, 1).WithKey(decomposed))
	require.NoError(t, err)
	assert.Equal(t, composed, id)

	got, found, err := s.Get(ctx, decomposed)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, composed, got.ID)
}

func TestInsert_ValidatorRejects(t *testing.T) {
	ctx := context.Background()
	v, err := schema.ForKind(record.KindImage)
	require.NoError(t, err)
	s := openTestImages(t, Options{Validator: v})

	_, err = s.Insert(ctx, record.Image{Title: "", Type: "image/png"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrInvalid))

	var ve *schema.ValidationError
	assert.True(t, errors.As(err, &ve))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestGet_Missing(t *testing.T) {
	ctx := context.Background()
	s := openTestImages(t, Options{})

	_, found, err := s.Get(ctx, "42")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = s.Get(ctx, "not-a-number")
	require.NoError(t, err)
	assert.False(t, found, "unencodable id is absent, not an error")
}

func TestGet_Undecodable(t *testing.T) {
	ctx := context.Background()
	s := openTestImages(t, Options{})
	putRaw(t, s, "7", []byte{0xff, 0x00})

	_, _, err := s.Get(ctx, "7")
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrSerialization))
}

func TestDelete_RemovesRecord(t *testing.T) {
	ctx := context.Background()
	s := openTestImages(t, Options{})

	id, err := s.Insert(ctx, testImage("doomed"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id))

	_, found, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDelete_Missing(t *testing.T) {
	ctx := context.Background()
	s := openTestImages(t, Options{})

	err := s.Delete(ctx, "99")
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err))

	err = s.Delete(ctx, "garbage")
	assert.True(t, store.IsNotFound(err))
}

func TestDelete_Twice(t *testing.T) {
	ctx := context.Background()
	s := openTestVerses(t, Options{})

	id, err := s.Insert(ctx, testVerse("Ruth", 1, 16))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id))
	assert.True(t, store.IsNotFound(s.Delete(ctx, id)))
}

func TestGetAll_Empty(t *testing.T) {
	s := openTestImages(t, Options{})

	all, err := s.GetAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestGetAll_CountTracksInsertsAndDeletes(t *testing.T) {
	ctx := context.Background()
	s := openTestVerses(t, Options{})

	var ids []string
	prev := 0
	for i := 1; i <= 5; i++ {
		id, err := s.Insert(ctx, testVerse("Mark", 1, i))
		require.NoError(t, err)
		ids = append(ids, id)

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(all), prev)
		prev = len(all)
	}
	assert.Equal(t, 5, prev)

	require.NoError(t, s.Delete(ctx, ids[2]))
	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Less(t, len(all), prev)
	assert.Len(t, all, 4)
}

func TestGetAll_SkipsUndecodable(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	s := openTestImages(t, Options{Options: store.Options{Logger: logger}})

	_, err := s.Insert(ctx, testImage("good"))
	require.NoError(t, err)
	putRaw(t, s, "5", []byte{0xff, 0x00})

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, "good", all[0].Title)
	assert.Contains(t, logs.String(), "skipping undecodable record")
	assert.Contains(t, logs.String(), "id=5")

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "count includes undecodable keys")
}

func TestGetAll_StrictFails(t *testing.T) {
	ctx := context.Background()
	s := openTestImages(t, Options{Options: store.Options{Strict: true}})

	_, err := s.Insert(ctx, testImage("good"))
	require.NoError(t, err)
	putRaw(t, s, "5", []byte{0xff, 0x00})

	_, err = s.GetAll(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrSerialization))
	assert.True(t, strings.Contains(err.Error(), `"5"`))
}

func TestGetAll_KeyOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestImages(t, Options{})

	for i := 0; i < 300; i++ {
		_, err := s.Insert(ctx, testImage("img"))
		require.NoError(t, err)
	}

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 300)
	for i, img := range all {
		assert.Equal(t, int64(i+1), img.ID, "big-endian keys iterate numerically")
	}
}

func TestDurability_CloseReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "durable.db")
	opts := Options{Bucket: record.KindVerse, Keys: UUID{Generator: ident.NewSequentialGenerator("v")}}

	s1, err := Open[record.Verse](path, opts)
	require.NoError(t, err)
	id, err := s1.Insert(ctx, testVerse("Exodus", 20, 3))
	require.NoError(t, err)
	require.NoError(t, s1.Flush(ctx))
	require.NoError(t, s1.Close())

	s2, err := Open[record.Verse](path, opts)
	require.NoError(t, err)
	defer s2.Close()

	got, found, err := s2.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Exodus", got.Book)
	assert.Equal(t, id, got.ID)
}

func TestDurability_SequenceSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seq.db")
	opts := Options{Bucket: record.KindImage, Keys: Sequence{}}

	s1, err := Open[record.Image](path, opts)
	require.NoError(t, err)
	_, err = s1.Insert(ctx, testImage("one"))
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open[record.Image](path, opts)
	require.NoError(t, err)
	defer s2.Close()

	id, err := s2.Insert(ctx, testImage("two"))
	require.NoError(t, err)
	assert.Equal(t, "2", id)
}

func TestJSONCodec(t *testing.T) {
	ctx := context.Background()
	s := openTestVerses(t, Options{Codec: codec.JSON{}})

	id, err := s.Insert(ctx, testVerse("Luke", 2, 14))
	require.NoError(t, err)
	assert.Equal(t, "verse-0001", id)

	got, found, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, testVerse("Luke", 2, 14).WithKey(id), got)
}

func TestInsert_InvalidUTF8(t *testing.T) {
	ctx := context.Background()
	bad := testVerse("Psalms", 23, 1)
	bad.Text = "bad\xffbyte"

	t.Run("cbor round trips the bytes", func(t *testing.T) {
		s := openTestVerses(t, Options{})

		id, err := s.Insert(ctx, bad)
		require.NoError(t, err)

		got, found, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, bad.WithKey(id), got)

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("json rejects the write", func(t *testing.T) {
		s := openTestVerses(t, Options{Codec: codec.JSON{}})

		_, err := s.Insert(ctx, bad)
		require.Error(t, err)
		assert.True(t, errors.Is(err, store.ErrSerialization))
		assert.True(t, errors.Is(err, codec.ErrInvalidUTF8))

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := openTestImages(t, Options{})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	_, err := s.Insert(ctx, testImage("late"))
	assert.True(t, errors.Is(err, store.ErrIO))

	_, _, err = s.Get(ctx, "1")
	assert.True(t, errors.Is(err, store.ErrIO))

	_, err = s.GetAll(ctx)
	assert.True(t, errors.Is(err, store.ErrIO))

	assert.True(t, errors.Is(s.Delete(ctx, "1"), store.ErrIO))
	assert.True(t, errors.Is(s.Flush(ctx), store.ErrIO))
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := openTestImages(t, Options{})

	_, err := s.Insert(ctx, testImage("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStoreInterface(t *testing.T) {
	var _ store.Store[record.Image] = openTestImages(t, Options{})
	var _ store.Store[record.Verse] = openTestVerses(t, Options{})
}
