package usecases

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"go.mau.fi/whatsmeow/util/cbcutil"
	"go.mau.fi/whatsmeow/util/hkdfutil"

	"zapdesk/internal/entities"
)

// Errors surfaced by the decrypt path. All of them degrade media delivery
// to "preview unavailable" upstream; none of them crash a webhook.
var (
	ErrBadKeyMaterial   = errors.New("media key material is not a 32-byte key")
	ErrUnknownMediaKind = errors.New("unknown media kind for key derivation")
	ErrCiphertextShort  = errors.New("ciphertext shorter than the MAC suffix")
	ErrMacMismatch      = errors.New("media MAC verification failed")
)

// Protocol-fixed HKDF info strings. These must match the transport's
// encryption scheme byte for byte or decryption produces garbage.
var mediaKindInfo = map[string]string{
	entities.KindImage:    "WhatsApp Image Keys",
	entities.KindVideo:    "WhatsApp Video Keys",
	entities.KindAudio:    "WhatsApp Audio Keys",
	entities.KindDocument: "WhatsApp Document Keys",
	entities.KindSticker:  "WhatsApp Image Keys",
}

const mediaMACLength = 10

// NormalizeMediaKey accepts the two shapes gateways deliver key material
// in: a base64 string, or a JSON byte-map like {"0":121,"1":3,...}. Either
// way the result must be exactly 32 bytes.
func NormalizeMediaKey(raw interface{}) ([]byte, error) {
	switch v := raw.(type) {
	case nil:
		return nil, ErrBadKeyMaterial
	case []byte:
		if len(v) != 32 {
			return nil, ErrBadKeyMaterial
		}
		return v, nil
	case string:
		key, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			key, err = base64.RawStdEncoding.DecodeString(v)
		}
		if err != nil || len(key) != 32 {
			return nil, ErrBadKeyMaterial
		}
		return key, nil
	case map[string]interface{}:
		indexes := make([]int, 0, len(v))
		for k := range v {
			i, err := strconv.Atoi(k)
			if err != nil {
				return nil, ErrBadKeyMaterial
			}
			indexes = append(indexes, i)
		}
		sort.Ints(indexes)
		key := make([]byte, 0, len(indexes))
		for _, i := range indexes {
			f, ok := v[strconv.Itoa(i)].(float64)
			if !ok {
				return nil, ErrBadKeyMaterial
			}
			key = append(key, byte(int(f)))
		}
		if len(key) != 32 {
			return nil, ErrBadKeyMaterial
		}
		return key, nil
	default:
		return nil, ErrBadKeyMaterial
	}
}

// MediaDecryptor reverses the transport's media encryption: HKDF-SHA256
// expansion of the 32-byte media key into IV + cipher key (+ MAC key),
// then AES-256-CBC over the ciphertext minus its 10-byte MAC suffix.
type MediaDecryptor struct {
	// VerifyMAC switches on HMAC-SHA256 validation of the stripped
	// suffix. Off by default: the deployed gateways never verified it,
	// and flipping this on rejects ciphertext they accept.
	VerifyMAC bool
}

// Decrypt returns the plaintext media bytes.
func (d *MediaDecryptor) Decrypt(cipherBytes, mediaKey []byte, mediaKind string) ([]byte, error) {
	if len(mediaKey) != 32 {
		return nil, ErrBadKeyMaterial
	}
	info, ok := mediaKindInfo[mediaKind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMediaKind, mediaKind)
	}
	if len(cipherBytes) <= mediaMACLength {
		return nil, ErrCiphertextShort
	}

	// 112 derived bytes: iv [0:16], cipher key [16:48], mac key [48:80].
	// The final 32 bytes are unused by this scheme.
	expanded := hkdfutil.SHA256(mediaKey, nil, []byte(info), 112)
	iv := expanded[:16]
	cipherKey := expanded[16:48]
	macKey := expanded[48:80]

	ciphertext := cipherBytes[:len(cipherBytes)-mediaMACLength]
	mac := cipherBytes[len(cipherBytes)-mediaMACLength:]

	if d.VerifyMAC {
		h := hmac.New(sha256.New, macKey)
		h.Write(iv)
		h.Write(ciphertext)
		if !hmac.Equal(h.Sum(nil)[:mediaMACLength], mac) {
			return nil, ErrMacMismatch
		}
	}

	plain, err := cbcutil.Decrypt(cipherKey, iv, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("cbc decrypt: %w", err)
	}
	return plain, nil
}
