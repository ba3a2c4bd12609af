package usecases

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapdesk/internal/entities"
	"zapdesk/internal/interfaces"
)

type fetchGateway struct {
	base64Body string
	err        error
}

func (g *fetchGateway) SendText(_ context.Context, _, _, _ string) error { return nil }
func (g *fetchGateway) SendMedia(_ context.Context, _, _ string, _ interfaces.MediaPayload) error {
	return nil
}
func (g *fetchGateway) FetchMediaBase64(_ context.Context, _ string, _ interfaces.MediaRef) (string, error) {
	return g.base64Body, g.err
}

func newMediaService(t *testing.T, gateway interfaces.Gateway) *MediaService {
	t.Helper()
	return NewMediaService(gateway, &MediaDecryptor{}, t.TempDir(), "http://localhost:8080")
}

func imageEvent() *entities.InboundEvent {
	return &entities.InboundEvent{
		Instance:       "shop1",
		ConversationID: "conv1",
		Kind:           entities.KindImage,
		MimeType:       "image/jpeg",
	}
}

func TestStoreInboundInlineBase64(t *testing.T) {
	s := newMediaService(t, &fetchGateway{})
	raw := []byte("jpeg bytes")

	ev := imageEvent()
	ev.DirectBase64 = base64.StdEncoding.EncodeToString(raw)

	url, err := s.StoreInbound(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8080/arquivos/"))
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	stored, err := os.ReadFile(filepath.Join(s.UploadDir, filepath.Base(url)))
	require.NoError(t, err)
	assert.Equal(t, raw, stored)
}

func TestStoreInboundStripsDataPrefix(t *testing.T) {
	s := newMediaService(t, &fetchGateway{})
	raw := []byte("png bytes")

	ev := imageEvent()
	ev.MimeType = "image/png"
	ev.DirectBase64 = "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	url, err := s.StoreInbound(context.Background(), ev)
	require.NoError(t, err)

	stored, err := os.ReadFile(filepath.Join(s.UploadDir, filepath.Base(url)))
	require.NoError(t, err)
	assert.Equal(t, raw, stored)
}

func TestStoreInboundDownloadsAndDecrypts(t *testing.T) {
	key := randomMediaKey(t)
	plain := []byte("encrypted image content")
	cipherBytes := encryptLikeGateway(t, key, entities.KindImage, plain)

	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(cipherBytes)
	}))
	defer cdn.Close()

	s := newMediaService(t, &fetchGateway{})
	ev := imageEvent()
	ev.MediaURL = cdn.URL + "/blob.enc"
	ev.MediaKey = key

	url, err := s.StoreInbound(context.Background(), ev)
	require.NoError(t, err)

	stored, err := os.ReadFile(filepath.Join(s.UploadDir, filepath.Base(url)))
	require.NoError(t, err)
	assert.Equal(t, plain, stored)
}

func TestStoreInboundFallsBackToGatewayFetch(t *testing.T) {
	raw := []byte("fetched via gateway")
	s := newMediaService(t, &fetchGateway{base64Body: base64.StdEncoding.EncodeToString(raw)})

	// No inline payload and no decryptable blob: the gateway routes are
	// the last resort.
	url, err := s.StoreInbound(context.Background(), imageEvent())
	require.NoError(t, err)

	stored, err := os.ReadFile(filepath.Join(s.UploadDir, filepath.Base(url)))
	require.NoError(t, err)
	assert.Equal(t, raw, stored)
}

func TestStoreInboundDegradesWhenEverythingFails(t *testing.T) {
	s := newMediaService(t, &fetchGateway{err: ErrMediaUnavailable})

	_, err := s.StoreInbound(context.Background(), imageEvent())
	assert.ErrorIs(t, err, ErrMediaUnavailable)
}

func TestLoadAttachment(t *testing.T) {
	s := newMediaService(t, &fetchGateway{})
	raw := []byte("%PDF-1.4 fake")
	require.NoError(t, os.WriteFile(filepath.Join(s.UploadDir, "tabela.pdf"), raw, 0o644))

	payload, err := s.LoadAttachment("tabela.pdf", "Segue a tabela.", entities.MediaDocument)
	require.NoError(t, err)

	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), payload.Base64)
	assert.Equal(t, "application/pdf", payload.MimeType)
	assert.Equal(t, entities.MediaDocument, payload.Kind)
	assert.Equal(t, "Segue a tabela.", payload.Caption)
	assert.Equal(t, "tabela.pdf", payload.FileName)
}

func TestLoadAttachmentRejectsPathTraversal(t *testing.T) {
	s := newMediaService(t, &fetchGateway{})

	// Only the base name is honored, so an escape attempt just misses.
	_, err := s.LoadAttachment("../../etc/passwd", "", entities.MediaDocument)
	assert.Error(t, err)
}

func TestLoadAttachmentMissingFile(t *testing.T) {
	s := newMediaService(t, &fetchGateway{})
	_, err := s.LoadAttachment("nao-existe.jpg", "", entities.MediaImage)
	assert.Error(t, err)
}
