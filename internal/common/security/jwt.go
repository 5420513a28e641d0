package security

import (
	"errors"
	"time"
	"codebattle/internal/platform/config"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

var TokenAuth *jwtauth.JWTAuth

func InitJWT() {
	TokenAuth = jwtauth.New("HS256", config.AppConfig.JWTKey, nil)
}

// GenerateToken issues a short-lived access token.
func GenerateToken(userID, username, role string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"role":     role,
		"exp":      time.Now().Add(config.AppConfig.JWTExp).Unix(),
		"iat":      time.Now().Unix(),
	}
	_, tokenString, err := TokenAuth.Encode(claims)
	return tokenString, err
}

// GenerateRefreshToken issues a long-lived token carrying only identity.
func GenerateRefreshToken(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"refresh": true,
		"exp":     time.Now().Add(config.AppConfig.JWTRefreshExp).Unix(),
		"iat":     time.Now().Unix(),
	}
	_, tokenString, err := TokenAuth.Encode(claims)
	return tokenString, err
}

// DecodeRefreshToken validates a refresh token and returns the user id.
func DecodeRefreshToken(tokenString string) (string, error) {
	token, err := TokenAuth.Decode(tokenString)
	if err != nil {
		return "", err
	}
	if refresh, ok := token.Get("refresh"); !ok || refresh != true {
		return "", errors.New("not a refresh token")
	}
	userID, ok := token.Get("user_id")
	if !ok {
		return "", errors.New("user_id claim missing")
	}
	id, ok := userID.(string)
	if !ok {
		return "", errors.New("user_id claim is not a string")
	}
	return id, nil
}

func GetUserIDFromClaims(claims map[string]interface{}) (string, error) {
	id, ok := claims["user_id"].(string)
	if !ok {
		return "", errors.New("user_id claim is missing or not a string")
	}
	return id, nil
}

func GetUserRoleFromClaims(claims map[string]interface{}) (string, error) {
	role, ok := claims["role"].(string)
	if !ok {
		return "", errors.New("role claim is missing or not a string")
	}
	return role, nil
}
