package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapdesk/internal/interfaces"
)

func TestSendTextCarriesAPIKey(t *testing.T) {
	var gotPath, gotAPIKey string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("apikey")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	g := NewGatewayClient(srv.URL, "secret-key")
	err := g.SendText(context.Background(), "shop1", "5511999999999@s.whatsapp.net", "olá")
	require.NoError(t, err)

	assert.Equal(t, "/message/sendText/shop1", gotPath)
	assert.Equal(t, "secret-key", gotAPIKey)
	assert.Equal(t, "olá", gotBody["text"])
	assert.Equal(t, "5511999999999@s.whatsapp.net", gotBody["number"])
}

func TestSendTextGatewayFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	g := NewGatewayClient(srv.URL, "k")
	err := g.SendText(context.Background(), "shop1", "num", "texto")
	assert.ErrorContains(t, err, "400")
}

func TestFetchMediaFallsThroughRoutes(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		// First known route is gone on this gateway version.
		if r.URL.Path == "/chat/getBase64FromMediaMessage/shop1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"base64": "QUJDRA=="})
	}))
	defer srv.Close()

	g := NewGatewayClient(srv.URL, "k")
	b64, err := g.FetchMediaBase64(context.Background(), "shop1", interfaces.MediaRef{MessageID: "MSG1"})
	require.NoError(t, err)

	assert.Equal(t, "QUJDRA==", b64)
	assert.Equal(t, []string{
		"/chat/getBase64FromMediaMessage/shop1",
		"/message/getBase64FromMediaMessage/shop1",
	}, paths)
}

func TestFetchMediaAllRoutesMissing(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	g := NewGatewayClient(srv.URL, "k")
	_, err := g.FetchMediaBase64(context.Background(), "shop1", interfaces.MediaRef{MessageID: "MSG1"})

	assert.ErrorIs(t, err, ErrMediaNotFound)
	assert.Equal(t, len(mediaRoutes), hits, "every known route must be probed")
}

func TestFetchMediaStopsOnHardError(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGatewayClient(srv.URL, "k")
	_, err := g.FetchMediaBase64(context.Background(), "shop1", interfaces.MediaRef{MessageID: "MSG1"})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMediaNotFound)
	assert.Equal(t, 1, hits, "a non-404 failure is terminal, not a version mismatch")
}

func TestFetchMediaEmptyBodyCountsAsMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"base64": ""})
	}))
	defer srv.Close()

	g := NewGatewayClient(srv.URL, "k")
	_, err := g.FetchMediaBase64(context.Background(), "shop1", interfaces.MediaRef{MessageID: "MSG1"})
	assert.ErrorIs(t, err, ErrMediaNotFound)
}

func TestFetchMediaHonorsContextDuringDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should be made with a cancelled context")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewGatewayClient(srv.URL, "k")
	_, err := g.FetchMediaBase64(ctx, "shop1", interfaces.MediaRef{MessageID: "MSG1"})
	assert.ErrorIs(t, err, context.Canceled)
}
