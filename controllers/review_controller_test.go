package controllers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestReviewedUpdateCarriesRating(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	update := reviewedUpdate(4, now)

	set, ok := update["$set"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, true, set["reviewed"])
	assert.Equal(t, 4, set["reviewRating"])
	assert.Equal(t, now, set["reviewedAt"])
	assert.Equal(t, now, set["updatedAt"])
}
