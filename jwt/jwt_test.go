package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestNewHMACSigner_WeakSecret(t *testing.T) {
	_, err := NewHMACSigner([]byte("short"), "")
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestHMAC_SignVerify(t *testing.T) {
	s, err := NewHMACSigner(testSecret, "electrotech")
	require.NoError(t, err)

	token, issued, err := s.Sign(42, "alice", "customer", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username())
	assert.Equal(t, "customer", claims.Role)
	assert.Equal(t, issued.ID, claims.ID)

	_, second, err := s.Sign(42, "alice", "customer", time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, issued.ID, second.ID, "every token gets its own jti")
}

func TestSign_RejectsNonPositiveTTL(t *testing.T) {
	s, err := NewHMACSigner(testSecret, "")
	require.NoError(t, err)

	_, _, err = s.Sign(1, "alice", "customer", 0)
	assert.Error(t, err)
}

func TestVerify_Rejects(t *testing.T) {
	s, err := NewHMACSigner(testSecret, "electrotech")
	require.NoError(t, err)
	token, _, err := s.Sign(1, "alice", "customer", time.Minute)
	require.NoError(t, err)

	t.Run("tampered payload", func(t *testing.T) {
		forged, _, err := s.Sign(1, "alice", "admin", time.Minute)
		require.NoError(t, err)
		// splice the admin payload onto the customer signature
		orig, fake := strings.Split(token, "."), strings.Split(forged, ".")
		tampered := orig[0] + "." + fake[1] + "." + orig[2]
		_, err = s.Verify(tampered)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := NewHMACSigner([]byte("ffffffffffffffffffffffffffffffff"), "electrotech")
		require.NoError(t, err)
		_, err = other.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other issuer", func(t *testing.T) {
		other, err := NewHMACSigner(testSecret, "someone-else")
		require.NoError(t, err)
		_, err = other.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		late, err := NewHMACSigner(testSecret, "electrotech")
		require.NoError(t, err)
		late.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		_, err = late.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("alg none", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
			UserID: 1,
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        "x",
				Issuer:    "electrotech",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = s.Verify(unsigned)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func writePEM(t *testing.T, dir, name, blockType string, der []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestRSA_FromFiles(t *testing.T) {
	dir := t.TempDir()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	privPath := writePEM(t, dir, "private.pem", "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key))
	pubPath := writePEM(t, dir, "public.pem", "PUBLIC KEY", pubDER)

	s, err := NewRSASignerFromFiles(privPath, pubPath, "electrotech")
	require.NoError(t, err)

	token, _, err := s.Sign(7, "bob", "admin", time.Hour)
	require.NoError(t, err)
	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "admin", claims.Role)

	// an HMAC signer must not accept an RS256 token
	hmacSigner, err := NewHMACSigner(testSecret, "electrotech")
	require.NoError(t, err)
	_, err = hmacSigner.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherDER, err := x509.MarshalPKIXPublicKey(&other.PublicKey)
	require.NoError(t, err)
	mismatched := writePEM(t, dir, "other.pem", "PUBLIC KEY", otherDER)
	_, err = NewRSASignerFromFiles(privPath, mismatched, "electrotech")
	assert.Error(t, err)

	_, err = NewRSASignerFromFiles(filepath.Join(dir, "missing.pem"), pubPath, "")
	assert.Error(t, err)
}
