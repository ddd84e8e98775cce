package auth

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/Parley/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestVerifier(t *testing.T) {
	ctx := context.Background()

	t.Run("should round trip the identity", func(t *testing.T) {
		v, err := NewVerifier("s3cret", time.Hour)
		require.NoError(t, err)

		tok, err := v.Issue(domain.User{ID: "u1", Username: "alice"})
		require.NoError(t, err)

		user, err := v.VerifySession(ctx, tok)
		require.NoError(t, err)
		require.Equal(t, domain.UserID("u1"), user.ID)
		require.Equal(t, "alice", user.Username)
	})

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		a, _ := NewVerifier("a", time.Hour)
		b, _ := NewVerifier("b", time.Hour)
		tok, err := a.Issue(domain.User{ID: "u1", Username: "alice"})
		require.NoError(t, err)

		_, err = b.VerifySession(ctx, tok)
		require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		v, _ := NewVerifier("s3cret", time.Hour)
		claims := &Claims{
			UserID:   "u1",
			Username: "alice",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
				Issuer:    issuer,
			},
		}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
		require.NoError(t, err)

		_, err = v.VerifySession(ctx, tok)
		require.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("should reject a token without a username", func(t *testing.T) {
		v, _ := NewVerifier("s3cret", time.Hour)
		tok, err := v.Issue(domain.User{ID: "u1"})
		require.NoError(t, err)

		_, err = v.VerifySession(ctx, tok)
		require.ErrorIs(t, err, domain.ErrUsernameEmpty)
	})

	t.Run("should reject garbage and an empty secret", func(t *testing.T) {
		v, _ := NewVerifier("s3cret", time.Hour)
		_, err := v.VerifySession(ctx, "not-a-jwt")
		require.ErrorIs(t, err, jwt.ErrTokenMalformed)

		_, err = NewVerifier("", time.Hour)
		require.ErrorIs(t, err, ErrEmptySecret)
	})
}
