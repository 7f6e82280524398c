package discount

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/snapstudio-api/internal/resilience"
)

func newRemote(t *testing.T, h http.HandlerFunc) *RemoteStore {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &RemoteStore{
		BaseURL: srv.URL + "/",
		Client: resilience.HTTPClient{
			Client:      srv.Client(),
			MaxAttempts: 2,
			BaseBackoff: time.Millisecond,
		},
	}
}

func TestRemoteStoreLookup(t *testing.T) {
	store := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/codes/FLASH25":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":{"code":"flash25","type":"percentage","value":"25","minimumOrder":"200","maximumDiscount":"300","usageCount":4}}`))
		default:
			http.NotFound(w, r)
		}
	})

	c, err := store.Lookup(context.Background(), " flash25 ")
	require.NoError(t, err)
	require.Equal(t, "FLASH25", c.Code)
	require.True(t, money("300").Equal(*c.MaximumDiscount))
	require.Equal(t, 4, c.UsageCount)
	require.Nil(t, c.UsageLimit)

	_, err = store.Lookup(context.Background(), "missing")
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestRemoteStoreServerErrorIsUnreachable(t *testing.T) {
	store := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := store.Lookup(context.Background(), "WELCOME10")
	require.ErrorIs(t, err, ErrValidationUnreachable)
}

func TestRemoteStoreClientErrorIsNotUnreachable(t *testing.T) {
	store := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := store.Lookup(context.Background(), "WELCOME10")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrValidationUnreachable)
}

func TestRemoteStoreWithoutURL(t *testing.T) {
	_, err := (&RemoteStore{}).Lookup(context.Background(), "WELCOME10")
	require.ErrorIs(t, err, ErrValidationUnreachable)
}

func TestRemoteStoreOpenCircuitIsUnreachable(t *testing.T) {
	store := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	store.Client.Breaker = resilience.NewBreaker(1, 0.5, time.Minute)
	store.Client.MaxAttempts = 1
	ctx := context.Background()

	_, err := store.Lookup(ctx, "WELCOME10")
	require.ErrorIs(t, err, ErrValidationUnreachable)
	_, err = store.Lookup(ctx, "WELCOME10")
	require.ErrorIs(t, err, ErrValidationUnreachable)
	require.ErrorContains(t, err, resilience.ErrOpenCircuit.Error())
}
