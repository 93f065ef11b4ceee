package datastore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateUser(t *testing.T) {
	store := openTestStore(t)

	user, err := store.CreateUser("estate-a", "harvest2024", "Estate A Grader")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "estate-a", user.Username)
	assert.Equal(t, "user", user.Role)
	assert.NotEqual(t, "harvest2024", user.PasswordHash, "password must be stored hashed")

	_, err = store.CreateUser("estate-a", "different", "")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestVerifyUser(t *testing.T) {
	store := openTestStore(t)
	_, err := store.CreateUser("estate-a", "harvest2024", "")
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		user, err := store.VerifyUser("estate-a", "harvest2024")
		require.NoError(t, err)
		assert.Equal(t, "estate-a", user.Username)
		require.NotNil(t, user.LastLogin)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := store.VerifyUser("estate-a", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := store.VerifyUser("nobody", "harvest2024")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestSaveGradingTruncatesImage(t *testing.T) {
	store := openTestStore(t)

	rec := &GradingHistory{
		ImageURL:    strings.Repeat("A", 5000),
		Predictions: "[1,0,0]",
		TopClass:    "unripe",
		Confidence:  1.0,
		InferenceMs: 42,
	}
	require.NoError(t, store.SaveGrading(rec))

	records, err := store.History(nil, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Len(t, records[0].ImageURL, storedImageLimit)
	assert.Equal(t, "unripe", records[0].TopClass)
	assert.Equal(t, int64(42), records[0].InferenceMs)
}

func TestHistory(t *testing.T) {
	store := openTestStore(t)

	alice, err := store.CreateUser("alice", "pw-alice", "")
	require.NoError(t, err)
	bob, err := store.CreateUser("bob", "pw-bob", "")
	require.NoError(t, err)

	labels := []string{"unripe", "ripe", "over_ripe", "ripe"}
	owners := []*uint{&alice.ID, &bob.ID, &alice.ID, nil}
	for i, label := range labels {
		require.NoError(t, store.SaveGrading(&GradingHistory{
			UserID:   owners[i],
			TopClass: label,
		}))
	}

	t.Run("all users", func(t *testing.T) {
		records, err := store.History(nil, 10)
		require.NoError(t, err)
		assert.Len(t, records, 4)
	})

	t.Run("limited", func(t *testing.T) {
		records, err := store.History(nil, 2)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("filtered by user", func(t *testing.T) {
		records, err := store.History(&alice.ID, 10)
		require.NoError(t, err)
		require.Len(t, records, 2)
		for _, rec := range records {
			require.NotNil(t, rec.UserID)
			assert.Equal(t, alice.ID, *rec.UserID)
		}
	})

	t.Run("newest first", func(t *testing.T) {
		records, err := store.History(nil, 10)
		require.NoError(t, err)
		for i := 1; i < len(records); i++ {
			assert.False(t, records[i].CreatedAt.After(records[i-1].CreatedAt))
		}
	})
}
