package tokenpkg

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-ledger/pkg/randompkg"
)

func TestNewJWTMakerKeySize(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "Minimum", key: randompkg.String(minSecretKeySize)},
		{name: "Longer", key: randompkg.String(minSecretKeySize * 2)},
		{name: "Short", key: randompkg.String(minSecretKeySize - 1), wantErr: true},
		{name: "Empty", key: "", wantErr: true},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			maker, err := NewJWTMaker(tc.key)
			if tc.wantErr {
				require.Error(t, err)
				require.Nil(t, maker)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, maker)
		})
	}
}

func TestJWTMakerRoles(t *testing.T) {
	t.Parallel()

	maker, err := NewJWTMaker(randompkg.String(32))
	require.NoError(t, err)

	testCases := []struct {
		name     string
		username string
		role     string
		duration time.Duration
		wantErr  error
	}{
		{name: "User", username: randompkg.Owner(), role: RoleUser, duration: time.Minute},
		{name: "Admin", username: "admin", role: RoleAdmin, duration: time.Minute},
		{name: "ExpiredAdmin", username: "admin", role: RoleAdmin, duration: -time.Minute, wantErr: ErrExpiredToken},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			token, created, err := maker.CreateToken(tc.username, tc.role, tc.duration)
			require.NoError(t, err)
			require.Equal(t, tc.role, created.Role)

			payload, err := maker.VerifyToken(token)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.Nil(t, payload)

				return
			}

			require.NoError(t, err)
			require.Equal(t, created.ID, payload.ID)
			require.Equal(t, tc.username, payload.Username)
			require.Equal(t, tc.role, payload.Role)
			require.WithinDuration(t, created.ExpiredAt, payload.ExpiredAt, time.Second)
		})
	}
}

// A token that claims the admin role without a valid signature must not verify.
func TestJWTMakerRejectsForgedAdmin(t *testing.T) {
	t.Parallel()

	maker, err := NewJWTMaker(randompkg.String(32))
	require.NoError(t, err)

	userToken, _, err := maker.CreateToken("alice", RoleUser, time.Minute)
	require.NoError(t, err)

	other, err := NewJWTMaker(randompkg.String(32))
	require.NoError(t, err)

	foreignToken, _, err := other.CreateToken("alice", RoleAdmin, time.Minute)
	require.NoError(t, err)

	payload, err := NewPayload("alice", RoleAdmin, time.Minute)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, payload).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	testCases := []struct {
		name  string
		token string
	}{
		{name: "RoleRewritten", token: rewriteRole(t, userToken, RoleAdmin)},
		{name: "SignedWithOtherKey", token: foreignToken},
		{name: "AlgNone", token: unsigned},
		{name: "Garbage", token: "not.a.token"},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := maker.VerifyToken(tc.token)
			require.ErrorIs(t, err, ErrInvalidToken)
			require.Nil(t, got)
		})
	}
}

// rewriteRole swaps the role claim of a signed token and keeps the old signature.
func rewriteRole(t *testing.T, token, role string) string {
	t.Helper()

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	claims, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	rewritten := strings.Replace(string(claims), `"role":"`+RoleUser+`"`, `"role":"`+role+`"`, 1)
	require.NotEqual(t, string(claims), rewritten)

	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(rewritten))

	return strings.Join(parts, ".")
}
