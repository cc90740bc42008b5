package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lestrrat-go/jwx/jwk"
	jwxjwt "github.com/lestrrat-go/jwx/jwt"
	"github.com/serbisyo/serbisyo_backend/config"
	"github.com/serbisyo/serbisyo_backend/middleware"
	"github.com/serbisyo/serbisyo_backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

// GoogleAuthService handles Google sign-in. ID tokens are verified against
// Google's published key set.
type GoogleAuthService struct {
	DB *mongo.Client
}

// NewGoogleAuthService creates a new Google auth service
func NewGoogleAuthService(db *mongo.Client) *GoogleAuthService {
	return &GoogleAuthService{DB: db}
}

// AuthenticateUser verifies the Google ID token, upserts the account, and
// returns our own token pair plus the user profile.
func (s *GoogleAuthService) AuthenticateUser(ctx context.Context, req *models.GoogleAuthRequest) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if req.TokenID == "" {
		return nil, errors.New("ID token is required")
	}

	email, name, picture, googleID, err := s.verifyIDToken(ctx, req.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify Google ID token: %w", err)
	}

	collection := config.GetCollection(s.DB, "users")

	// Look up by Google ID first, then by email for accounts created with
	// password signup.
	var user models.User
	err = collection.FindOne(ctx, bson.M{"googleId": googleID}).Decode(&user)
	if err != nil && errors.Is(err, mongo.ErrNoDocuments) {
		err = collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	}

	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("database error: %w", err)
		}

		now := time.Now()
		user = models.User{
			ID:             primitive.NewObjectID(),
			Email:          email,
			FullName:       name,
			Role:           models.RoleClient,
			GoogleID:       googleID,
			ProfilePic:     picture,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if _, err := collection.InsertOne(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	} else if user.GoogleID == "" {
		update := bson.M{"$set": bson.M{
			"googleId":       googleID,
			"profilePic": picture,
			"updatedAt":      time.Now(),
		}}
		if _, err := collection.UpdateOne(ctx, bson.M{"_id": user.ID}, update); err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
		user.GoogleID = googleID
	}

	token, refreshToken, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return map[string]interface{}{
		"token":        token,
		"refreshToken": refreshToken,
		"user": map[string]interface{}{
			"id":             user.ID,
			"email":          user.Email,
			"fullName":       user.FullName,
			"role":           user.Role,
			"profilePic": user.ProfilePic,
		},
	}, nil
}

// verifyIDToken validates signature, issuer, audience, and expiry against
// Google's JWKS and returns the identity claims we keep.
func (s *GoogleAuthService) verifyIDToken(ctx context.Context, idToken string) (email, name, picture, googleID string, err error) {
	keySet, err := jwk.Fetch(ctx, googleJWKSURL)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to fetch Google JWKS: %w", err)
	}

	token, err := jwxjwt.Parse([]byte(idToken),
		jwxjwt.WithKeySet(keySet),
		jwxjwt.WithValidate(true),
	)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to parse ID token: %w", err)
	}

	issuer := token.Issuer()
	if issuer != "https://accounts.google.com" && issuer != "accounts.google.com" {
		return "", "", "", "", fmt.Errorf("invalid token issuer: %s", issuer)
	}

	if clientID := os.Getenv("GOOGLE_OAUTH_CLIENT_ID"); clientID != "" {
		audOK := false
		for _, aud := range token.Audience() {
			if aud == clientID {
				audOK = true
				break
			}
		}
		if !audOK {
			return "", "", "", "", errors.New("token audience does not match client ID")
		}
	}

	claims := token.PrivateClaims()
	email, _ = claims["email"].(string)
	name, _ = claims["name"].(string)
	picture, _ = claims["picture"].(string)
	googleID = token.Subject()

	if email == "" || googleID == "" {
		return "", "", "", "", errors.New("token is missing identity claims")
	}
	if verified, ok := claims["email_verified"].(bool); ok && !verified {
		return "", "", "", "", errors.New("google account email is not verified")
	}
	return email, name, picture, googleID, nil
}
