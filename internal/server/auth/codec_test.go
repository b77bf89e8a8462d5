package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/contactsapi/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCodec(t *testing.T) (*Codec, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewCodec([]byte("super-secret"), "contactsapi", WithClock(clk.Now)), clk
}

func TestCodec_RoundTrip(t *testing.T) {
	c, _ := newTestCodec(t)

	for _, scope := range []Scope{ScopeAccess, ScopeRefresh, ScopeVerify} {
		tok, err := c.Encode("alice@example.com", scope, time.Hour)
		require.NoError(t, err)

		sub, err := c.Decode(tok, scope)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", sub)
	}
}

func TestCodec_ClaimSet(t *testing.T) {
	c, clk := newTestCodec(t)

	tok, err := c.Encode("a@b.c", ScopeRefresh, 0)
	require.NoError(t, err)

	claims := &Claims{}
	_, _, err = jwt.NewParser().ParseUnverified(tok, claims)
	require.NoError(t, err)

	assert.Equal(t, ScopeRefresh, claims.Scope)
	assert.Equal(t, "a@b.c", claims.Subject)
	assert.Equal(t, clk.t.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, clk.t.Add(DefaultTTL).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)
}

func TestCodec_DistinctTokensSameInstant(t *testing.T) {
	c, _ := newTestCodec(t)

	a, err := c.Encode("a@b.c", ScopeRefresh, time.Hour)
	require.NoError(t, err)
	b, err := c.Encode("a@b.c", ScopeRefresh, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCodec_Expired(t *testing.T) {
	c, clk := newTestCodec(t)

	tok, err := c.Encode("a@b.c", ScopeAccess, time.Minute)
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	_, err = c.Decode(tok, ScopeAccess)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestCodec_ScopeMismatch(t *testing.T) {
	c, _ := newTestCodec(t)

	tok, err := c.Encode("a@b.c", ScopeRefresh, time.Hour)
	require.NoError(t, err)

	_, err = c.Decode(tok, ScopeAccess)
	assert.ErrorIs(t, err, common.ErrScopeMismatch)

	vtok, err := c.Encode("a@b.c", ScopeVerify, time.Hour)
	require.NoError(t, err)
	_, err = c.Decode(vtok, ScopeAccess)
	assert.ErrorIs(t, err, common.ErrScopeMismatch)
}

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func TestCodec_TamperedSignature(t *testing.T) {
	c, _ := newTestCodec(t)

	for n := 0; n < 5; n++ {
		tok, err := c.Encode("a@b.c", ScopeAccess, time.Hour)
		require.NoError(t, err)

		parts := strings.Split(tok, ".")
		require.Len(t, parts, 3)

		for i := range parts[2] {
			sig := []byte(parts[2])
			idx := strings.IndexByte(base64URLAlphabet, sig[i])
			require.GreaterOrEqual(t, idx, 0)
			sig[i] = base64URLAlphabet[idx^1]

			forged := parts[0] + "." + parts[1] + "." + string(sig)
			_, err := c.Decode(forged, ScopeAccess)
			assert.ErrorIs(t, err, common.ErrInvalidSignature, "position %d of %d", i, len(sig))
		}
	}
}

func TestCodec_WrongSecret(t *testing.T) {
	c, clk := newTestCodec(t)
	other := NewCodec([]byte("other-secret"), "contactsapi", WithClock(clk.Now))

	tok, err := other.Encode("a@b.c", ScopeAccess, time.Hour)
	require.NoError(t, err)

	_, err = c.Decode(tok, ScopeAccess)
	assert.ErrorIs(t, err, common.ErrInvalidSignature)
}

func TestCodec_ExpiredWithBadSignatureIsInvalid(t *testing.T) {
	c, clk := newTestCodec(t)
	other := NewCodec([]byte("other-secret"), "contactsapi", WithClock(clk.Now))

	tok, err := other.Encode("a@b.c", ScopeAccess, time.Minute)
	require.NoError(t, err)
	clk.Advance(time.Hour)

	_, err = c.Decode(tok, ScopeAccess)
	assert.ErrorIs(t, err, common.ErrInvalidSignature)
}

func TestCodec_Malformed(t *testing.T) {
	c, _ := newTestCodec(t)

	for _, tok := range []string{"", "not.a.jwt", "abc"} {
		_, err := c.Decode(tok, ScopeAccess)
		assert.ErrorIs(t, err, common.ErrInvalidSignature, tok)
	}
}

func TestCodec_RejectsOtherAlgorithms(t *testing.T) {
	c, clk := newTestCodec(t)

	claims := Claims{
		Scope: ScopeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "a@b.c",
			Issuer:    "contactsapi",
			ExpiresAt: jwt.NewNumericDate(clk.t.Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("super-secret"))
	require.NoError(t, err)

	_, err = c.Decode(tok, ScopeAccess)
	assert.ErrorIs(t, err, common.ErrInvalidSignature)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = c.Decode(none, ScopeAccess)
	assert.ErrorIs(t, err, common.ErrInvalidSignature)
}

func TestCodec_WrongIssuer(t *testing.T) {
	c, clk := newTestCodec(t)
	other := NewCodec([]byte("super-secret"), "someone-else", WithClock(clk.Now))

	tok, err := other.Encode("a@b.c", ScopeAccess, time.Hour)
	require.NoError(t, err)

	_, err = c.Decode(tok, ScopeAccess)
	assert.ErrorIs(t, err, common.ErrInvalidSignature)
}
