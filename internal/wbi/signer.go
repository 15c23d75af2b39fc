package wbi

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bilitrack/bilitrack/internal/errors"
)

// mixinKeyEncTab is the fixed permutation applied to img_key+sub_key to
// derive the signing secret. Do not reorder.
var mixinKeyEncTab = [64]int{
	46, 47, 18, 2, 53, 8, 23, 32, 15, 50, 10, 31, 58, 3, 45, 35, 27, 43, 5, 49,
	33, 9, 42, 19, 29, 28, 14, 39, 12, 38, 41, 13, 37, 48, 7, 16, 24, 55, 40,
	61, 26, 17, 0, 1, 60, 51, 30, 4, 22, 25, 54, 21, 56, 59, 6, 63, 57, 62, 11,
	36, 20, 34, 44, 52,
}

// keyTTL is how long harvested keys stay valid before a refresh is
// forced.
const keyTTL = 12 * time.Hour

// Keys holds the two rotating upstream-supplied key halves.
type Keys struct {
	ImgKey string
	SubKey string
}

// Signer produces w_rid/wts signature parameters for upstream endpoints
// that require them. It owns its key cache; refresh it from nav
// responses via Refresh.
type Signer struct {
	mu        sync.RWMutex
	keys      Keys
	expiresAt time.Time
	now       func() time.Time
}

// NewSigner creates a Signer with an empty key cache.
func NewSigner() *Signer {
	return &Signer{now: time.Now}
}

// SetClock overrides the wall clock, for tests.
func (s *Signer) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Refresh stores a fresh key pair with a 12-hour expiry. This is the
// only mutation path for signer state.
func (s *Signer) Refresh(imgKey, subKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = Keys{ImgKey: imgKey, SubKey: subKey}
	s.expiresAt = s.now().Add(keyTTL)
}

// CurrentKeys returns the cached keys, or false once they have expired.
// Expired keys are never returned.
func (s *Signer) CurrentKeys() (Keys, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.keys.ImgKey == "" || !s.now().Before(s.expiresAt) {
		return Keys{}, false
	}
	return s.keys, true
}

// keyURLPattern pulls the key out of a wbi_img URL: the file name
// without its .png suffix.
var keyURLPattern = regexp.MustCompile(`/([^/]+)\.png$`)

// ExtractKeys pulls the key pair from the two image URLs carried by a
// nav response. Returns false when either URL has an unexpected shape.
func ExtractKeys(imgURL, subURL string) (Keys, bool) {
	img := keyURLPattern.FindStringSubmatch(imgURL)
	sub := keyURLPattern.FindStringSubmatch(subURL)
	if img == nil || sub == nil {
		return Keys{}, false
	}
	return Keys{ImgKey: img[1], SubKey: sub[1]}, true
}

// DeriveMixinKey concatenates the two key halves, applies the fixed
// permutation and truncates to 32 characters. Each half must be at
// least 32 characters so the permutation has 64 positions to index.
func DeriveMixinKey(imgKey, subKey string) (string, error) {
	raw := imgKey + subKey
	if len(imgKey) < 32 || len(subKey) < 32 || len(raw) < 64 {
		return "", &errors.ErrSigning{Reason: "key material too short to derive mixin key"}
	}

	var b strings.Builder
	b.Grow(64)
	for _, idx := range mixinKeyEncTab {
		b.WriteByte(raw[idx])
	}
	return b.String()[:32], nil
}

// Sign returns params plus a wts field (current Unix seconds) and a
// w_rid field (lowercase hex md5 of the canonical query plus the mixin
// secret). The input map is not modified. Signing the same field set
// within the same second yields an identical w_rid regardless of map
// iteration order.
func (s *Signer) Sign(params map[string]string) (map[string]string, error) {
	keys, ok := s.CurrentKeys()
	if !ok {
		return nil, &errors.ErrSigning{Reason: "no valid keys cached, refresh from nav first"}
	}

	mixinKey, err := DeriveMixinKey(keys.ImgKey, keys.SubKey)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	wts := s.now().Unix()
	s.mu.RUnlock()

	signed := make(map[string]string, len(params)+2)
	for k, v := range params {
		signed[k] = v
	}
	signed["wts"] = strconv.FormatInt(wts, 10)

	query := canonicalQuery(signed)
	sum := md5.Sum([]byte(query + mixinKey))
	signed["w_rid"] = hex.EncodeToString(sum[:])

	return signed, nil
}

// canonicalQuery sorts field names ascending by code point, sanitizes
// and percent-encodes each value, and joins key=value pairs with '&'.
func canonicalQuery(params map[string]string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+encodeValue(sanitizeValue(params[name])))
	}
	return strings.Join(parts, "&")
}

// sanitizeValue strips every occurrence of the characters !'()* before
// encoding, matching upstream's canonicalization.
func sanitizeValue(v string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '!', '\'', '(', ')', '*':
			return -1
		}
		return r
	}, v)
}

// encodeValue percent-encodes per RFC 3986 with uppercase hex digits;
// space becomes %20, never '+'.
func encodeValue(v string) string {
	const upperhex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '-' || c == '_' || c == '.' || c == '~'
}
