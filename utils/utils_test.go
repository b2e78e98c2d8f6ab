package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ttt-platform/trash2treasure/config"
)

func TestCodes(t *testing.T) {
	track := NewTrackID()
	require.Len(t, track, 10)
	require.True(t, strings.HasPrefix(track, "TR"))
	for _, c := range track[2:] {
		require.Contains(t, trackAlphabet, string(c))
	}

	ref := NewClaimReference()
	require.Len(t, ref, 12)
	require.True(t, strings.HasPrefix(ref, "CL"))
	require.NotEqual(t, ref, NewClaimReference())
}

func TestPasswordPolicy(t *testing.T) {
	require.Error(t, ValidatePassword("short1"))
	require.Error(t, ValidatePassword("1234567890"))
	require.Error(t, ValidatePassword(strings.Repeat("a", 73)))
	require.NoError(t, ValidatePassword("s3cret-pass"))

	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	require.True(t, CheckPassword(hash, "s3cret-pass"))
	require.False(t, CheckPassword(hash, "s3cret-pasS"))
}

func TestTokenTypes(t *testing.T) {
	config.Set(config.AppConfig{JWTSecret: "unit-test"})

	pair, err := GenerateTokenPair(7, "alice", "user")
	require.NoError(t, err)
	require.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	claims, err := ParseTokenOfType(pair.Access, AccessToken)
	require.NoError(t, err)
	require.EqualValues(t, 7, claims.UserID)
	require.Equal(t, "user", claims.Role)

	_, err = ParseTokenOfType(pair.Access, RefreshToken)
	require.Error(t, err)
	_, err = ParseTokenOfType(pair.Refresh, RefreshToken)
	require.NoError(t, err)

	expired, err := GenerateToken(7, "alice", "user", AccessToken, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	require.Error(t, err)

	config.Set(config.AppConfig{JWTSecret: "another-secret"})
	_, err = ParseToken(pair.Access)
	require.Error(t, err)
}

func TestTokenBlacklistWithoutRedis(t *testing.T) {
	config.Set(config.AppConfig{JWTSecret: "unit-test"})
	require.False(t, IsTokenBlacklisted("tok-a"))
	BlacklistToken("tok-a", time.Now().Add(time.Minute))
	require.True(t, IsTokenBlacklisted("tok-a"))

	// Already expired tokens are not worth remembering
	BlacklistToken("tok-b", time.Now().Add(-time.Minute))
	require.False(t, IsTokenBlacklisted("tok-b"))
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "hello world", CleanText("  <script>x</script>hello <b>world</b> "))
	require.Equal(t, "Tom & Jerry", CleanText("Tom &amp; Jerry"))
}

func TestSaveImage(t *testing.T) {
	root := t.TempDir()
	src := image.NewRGBA(image.Rect(0, 0, 800, 600))
	for x := 0; x < 800; x++ {
		src.Set(x, 300, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	rel, err := SaveImage(bytes.NewReader(buf.Bytes()), root, ProfileImageSpec)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rel, "profile_images/"))

	stored, err := imaging.Open(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	require.Equal(t, 400, stored.Bounds().Dx())
	require.Equal(t, 400, stored.Bounds().Dy())

	RemoveMedia(root, rel)
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	require.True(t, os.IsNotExist(err))

	_, err = SaveImage(strings.NewReader("not an image"), root, IDProofSpec)
	require.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestCaptchaStoreWithoutRedis(t *testing.T) {
	store := newRegistrationCaptchaStore(func() *redis.Client { return nil }, time.Minute)
	require.NoError(t, store.Set("abc", "12345"))

	require.False(t, store.Verify("abc", "54321", false))
	require.False(t, store.Verify("abc", "", false))
	require.True(t, store.Verify("abc", "12345", true))
	require.False(t, store.Verify("abc", "12345", true))
}

func TestCaptchaStoreFallsBackWhenRedisIsDown(t *testing.T) {
	rc := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rc.Close() })
	store := newRegistrationCaptchaStore(func() *redis.Client { return rc }, time.Minute)

	require.NoError(t, store.Set("xyz", "777"))
	require.Equal(t, "777", store.Get("xyz", false))
	require.True(t, store.Verify("xyz", "777", true))
	require.Empty(t, store.Get("xyz", false))
}
