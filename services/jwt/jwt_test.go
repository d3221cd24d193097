package jwt

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken(42, testSecret)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateAndGetClaims(token, testSecret)
	require.NoError(t, err)

	userID, err := UserIDFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)
}

func TestGenerateTokenRequiresSecret(t *testing.T) {
	_, err := GenerateToken(1, "")
	assert.Error(t, err)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken(1, testSecret)
	require.NoError(t, err)

	_, err = ValidateAndGetClaims(token, "some-other-secret")
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	claims := gojwt.MapClaims{
		"id":  float64(1),
		"iat": time.Now().Add(-2 * AccessTokenValidity).Unix(),
		"exp": time.Now().Add(-AccessTokenValidity).Unix(),
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ValidateAndGetClaims(token, testSecret)
	assert.Error(t, err)
}

func TestValidateRejectsUnsignedToken(t *testing.T) {
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, gojwt.MapClaims{"id": float64(1)}).
		SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateAndGetClaims(token, testSecret)
	assert.Error(t, err)
}

func TestUserIDFromClaimsRejectsMissingOrMalformedID(t *testing.T) {
	_, err := UserIDFromClaims(gojwt.MapClaims{})
	assert.Error(t, err)

	_, err = UserIDFromClaims(gojwt.MapClaims{"id": "not-a-number"})
	assert.Error(t, err)
}
