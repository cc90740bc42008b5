package utils

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/serbisyo/serbisyo_backend/security"
)

// RememberedCredentials is the payload parked in Redis for "Remember Me"
// logins. It is encrypted at rest; the token handed to the client is the
// only way to look it up.
type RememberedCredentials struct {
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Role       string    `json:"role"`
	UserID     string    `json:"userId"`
	ExpiresAt  time.Time `json:"expiresAt"`
	DeviceInfo string    `json:"deviceInfo"`
}

// GenerateRememberMeToken returns a 32-byte random token, URL-safe encoded.
func GenerateRememberMeToken() (string, error) {
	return security.GenerateToken(32)
}

func rememberMeCipher() (cipher.AEAD, error) {
	key := os.Getenv("REMEMBER_ME_ENCRYPTION_KEY")
	if key == "" {
		key = "default-encryption-key-32-bytes-long"
	}
	// AES-256 needs exactly 32 bytes
	if len(key) < 32 {
		key = key + "00000000000000000000000000000000"
	}
	block, err := aes.NewCipher([]byte(key[:32]))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func encryptCredentials(credentials RememberedCredentials) (string, error) {
	gcm, err := rememberMeCipher()
	if err != nil {
		return "", err
	}
	jsonData, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, jsonData, nil)), nil
}

func decryptCredentials(encryptedData string) (*RememberedCredentials, error) {
	gcm, err := rememberMeCipher()
	if err != nil {
		return nil, err
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encryptedData)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, err
	}
	var credentials RememberedCredentials
	if err := json.Unmarshal(plaintext, &credentials); err != nil {
		return nil, err
	}
	return &credentials, nil
}

func rememberMeKey(token string) string {
	return "remember_me:" + token
}

// StoreRememberedCredentials encrypts and parks credentials in Redis. The
// Redis TTL is the authority on expiry; ExpiresAt is a backstop checked on
// retrieval in case the key outlives it.
func StoreRememberedCredentials(redisClient *redis.Client, token string, credentials RememberedCredentials, expiration time.Duration) error {
	if redisClient == nil {
		return fmt.Errorf("Redis client not available")
	}
	encryptedData, err := encryptCredentials(credentials)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}
	if err := redisClient.Set(context.Background(), rememberMeKey(token), encryptedData, expiration).Err(); err != nil {
		return fmt.Errorf("failed to store in Redis: %w", err)
	}
	return nil
}

// RetrieveRememberedCredentials looks a token up and decrypts its payload.
func RetrieveRememberedCredentials(redisClient *redis.Client, token string) (*RememberedCredentials, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("Redis client not available")
	}
	ctx := context.Background()
	key := rememberMeKey(token)

	encryptedData, err := redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("remember me token not found or expired")
		}
		return nil, fmt.Errorf("Redis error: %w", err)
	}

	credentials, err := decryptCredentials(encryptedData)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}
	if time.Now().After(credentials.ExpiresAt) {
		redisClient.Del(ctx, key)
		return nil, fmt.Errorf("remember me token expired")
	}
	return credentials, nil
}

// RemoveRememberedCredentials drops a token, e.g. on logout.
func RemoveRememberedCredentials(redisClient *redis.Client, token string) error {
	if redisClient == nil {
		return fmt.Errorf("Redis client not available")
	}
	if err := redisClient.Del(context.Background(), rememberMeKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to remove from Redis: %w", err)
	}
	return nil
}
