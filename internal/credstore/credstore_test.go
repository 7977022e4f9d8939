package credstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/libresync/libresync/internal/models"
)

const testSecret = "correct-horse-battery-staple"

func openTestStore(t *testing.T, path, secret string) *Store {
	t.Helper()
	s, err := Open(path, secret, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestOpenRejectsEmptySecret(t *testing.T) {
	_, err := Open(t.TempDir(), "", zap.NewNop())
	require.ErrorIs(t, err, ErrEmptySecret)
}

func TestLoadEmptyStore(t *testing.T) {
	s := openTestStore(t, t.TempDir(), testSecret)
	defer s.Close()

	ticket, user := s.Load(context.Background())
	require.Nil(t, ticket)
	require.Nil(t, user)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, t.TempDir(), testSecret)
	defer s.Close()

	ticket := &models.AuthTicket{Token: "tok-1", Expires: 1710003600, Duration: 3600}
	user := &models.User{ID: "user-1", Email: "a@b.c", FirstName: "Ada", LastName: "L"}

	require.NoError(t, s.SaveTicket(ctx, ticket))
	require.NoError(t, s.SaveUser(ctx, user))

	gotTicket, gotUser := s.Load(ctx)
	require.Equal(t, ticket, gotTicket)
	require.Equal(t, user, gotUser)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := openTestStore(t, dir, testSecret)
	require.NoError(t, s.SaveTicket(ctx, &models.AuthTicket{Token: "tok-2"}))
	require.NoError(t, s.Close())

	s = openTestStore(t, dir, testSecret)
	defer s.Close()

	ticket, _ := s.Load(ctx)
	require.NotNil(t, ticket)
	require.Equal(t, "tok-2", ticket.Token)
}

func TestNilClears(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, t.TempDir(), testSecret)
	defer s.Close()

	require.NoError(t, s.SaveTicket(ctx, &models.AuthTicket{Token: "tok-3"}))
	require.NoError(t, s.SaveUser(ctx, &models.User{ID: "user-3"}))

	require.NoError(t, s.SaveTicket(ctx, nil))
	ticket, user := s.Load(ctx)
	require.Nil(t, ticket)
	require.NotNil(t, user)

	require.NoError(t, s.SaveUser(ctx, nil))
	_, user = s.Load(ctx)
	require.Nil(t, user)

	// Clearing an already empty store is not an error.
	require.NoError(t, s.SaveTicket(ctx, nil))
}

func TestPartialRecord(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, t.TempDir(), testSecret)
	defer s.Close()

	require.NoError(t, s.SaveTicket(ctx, &models.AuthTicket{Token: "tok-4", Duration: 60}))

	ticket, user := s.Load(ctx)
	require.NotNil(t, ticket)
	require.Equal(t, int64(60), ticket.Duration)
	require.Nil(t, user)
}

func TestWrongSecretDegradesToLoggedOut(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := openTestStore(t, dir, testSecret)
	require.NoError(t, s.SaveTicket(ctx, &models.AuthTicket{Token: "tok-5"}))
	require.NoError(t, s.SaveUser(ctx, &models.User{ID: "user-5"}))
	require.NoError(t, s.Close())

	s = openTestStore(t, dir, "a-different-secret-entirely")
	defer s.Close()

	ticket, user := s.Load(ctx)
	require.Nil(t, ticket)
	require.Nil(t, user)
}
