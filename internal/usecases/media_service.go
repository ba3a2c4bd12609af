package usecases

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"zapdesk/internal/entities"
	"zapdesk/internal/interfaces"
)

// ErrMediaUnavailable is the degraded outcome: the message is delivered,
// the preview is not.
var ErrMediaUnavailable = errors.New("media unavailable")

var extByMime = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"audio/ogg":       ".ogg",
	"audio/mpeg":      ".mp3",
	"application/pdf": ".pdf",
}

// MediaService resolves inbound attachments to local files and loads
// stored attachments for outbound delivery. Every inbound resolution is
// bounded by Timeout so a slow gateway never stalls the webhook.
type MediaService struct {
	Gateway   interfaces.Gateway
	Decryptor *MediaDecryptor
	UploadDir string
	PublicURL string
	Timeout   time.Duration

	httpClient *http.Client
}

func NewMediaService(gateway interfaces.Gateway, decryptor *MediaDecryptor, uploadDir, publicURL string) *MediaService {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		logrus.Warnf("could not create upload directory: %v", err)
	}
	return &MediaService{
		Gateway:    gateway,
		Decryptor:  decryptor,
		UploadDir:  uploadDir,
		PublicURL:  publicURL,
		Timeout:    20 * time.Second,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// StoreInbound materializes the attachment of a media event and returns
// the public URL it is served under. Resolution order: payload-inlined
// base64, encrypted CDN blob (downloaded and decrypted locally), then the
// gateway's own media routes.
func (s *MediaService) StoreInbound(ctx context.Context, ev *entities.InboundEvent) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var plain []byte

	switch {
	case ev.DirectBase64 != "":
		decoded, err := base64.StdEncoding.DecodeString(stripDataPrefix(ev.DirectBase64))
		if err != nil {
			return "", fmt.Errorf("%w: bad inline payload: %v", ErrMediaUnavailable, err)
		}
		plain = decoded

	case ev.MediaURL != "" && ev.MediaKey != nil:
		cipherBytes, err := s.download(ctx, ev.MediaURL)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
		}
		plain, err = s.Decryptor.Decrypt(cipherBytes, ev.MediaKey, ev.Kind)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"instance": ev.Instance,
				"kind":     ev.Kind,
			}).Warnf("media decrypt failed: %v", err)
			return "", fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
		}

	default:
		b64, err := s.Gateway.FetchMediaBase64(ctx, ev.Instance, interfaces.MediaRef{
			MessageID: ev.MessageID,
			URL:       ev.MediaURL,
			MimeType:  ev.MimeType,
		})
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
		}
		plain, err = base64.StdEncoding.DecodeString(stripDataPrefix(b64))
		if err != nil {
			return "", fmt.Errorf("%w: bad gateway payload: %v", ErrMediaUnavailable, err)
		}
	}

	name := uuid.NewString() + extFor(ev.MimeType, ev.Kind)
	if err := os.WriteFile(filepath.Join(s.UploadDir, name), plain, 0o644); err != nil {
		return "", fmt.Errorf("%w: store: %v", ErrMediaUnavailable, err)
	}
	return s.PublicURL + "/arquivos/" + name, nil
}

// LoadAttachment reads a trigger's stored attachment and returns it ready
// for the gateway's sendMedia call.
func (s *MediaService) LoadAttachment(mediaRef, caption, mediaKind string) (interfaces.MediaPayload, error) {
	fileName := filepath.Base(mediaRef)
	raw, err := os.ReadFile(filepath.Join(s.UploadDir, fileName))
	if err != nil {
		return interfaces.MediaPayload{}, fmt.Errorf("attachment %s: %w", fileName, err)
	}

	mimeType := "image/jpeg"
	kind := entities.MediaImage
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		mimeType, kind = "application/pdf", entities.MediaDocument
	case ".mp4":
		mimeType, kind = "video/mp4", entities.MediaVideo
	case ".ogg", ".mp3":
		mimeType, kind = "audio/ogg", entities.MediaAudio
	case ".png":
		mimeType = "image/png"
	}
	if mediaKind != "" && mediaKind != entities.MediaText {
		kind = mediaKind
	}

	return interfaces.MediaPayload{
		Base64:   base64.StdEncoding.EncodeToString(raw),
		Kind:     kind,
		MimeType: mimeType,
		Caption:  caption,
		FileName: fileName,
	}, nil
}

func (s *MediaService) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cdn returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func stripDataPrefix(b64 string) string {
	if i := strings.Index(b64, "base64,"); i >= 0 {
		return b64[i+len("base64,"):]
	}
	return b64
}

func extFor(mimeType, kind string) string {
	if ext, ok := extByMime[strings.Split(mimeType, ";")[0]]; ok {
		return ext
	}
	switch kind {
	case entities.KindImage, entities.KindSticker:
		return ".jpg"
	case entities.KindVideo:
		return ".mp4"
	case entities.KindAudio:
		return ".ogg"
	case entities.KindDocument:
		return ".bin"
	}
	return ".bin"
}
