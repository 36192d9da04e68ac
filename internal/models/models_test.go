package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole(t *testing.T) {
	assert.True(t, RoleLeadGuide.Valid())
	assert.False(t, Role("superuser").Valid())
	assert.True(t, RoleAdmin.In(RoleAdmin, RoleLeadGuide))
	assert.False(t, RoleUser.In(RoleAdmin, RoleLeadGuide))
	assert.False(t, RoleUser.In())
}

func TestUser_ChangedPasswordAfter(t *testing.T) {
	issued := time.Unix(1_700_000_000, 0)

	u := &User{}
	assert.False(t, u.ChangedPasswordAfter(issued), "never changed")

	before := issued.Add(-time.Minute)
	u.PasswordChangedAt = &before
	assert.False(t, u.ChangedPasswordAfter(issued))

	sameSecond := issued.Add(400 * time.Millisecond)
	u.PasswordChangedAt = &sameSecond
	assert.False(t, u.ChangedPasswordAfter(issued), "same second is not later")

	after := issued.Add(2 * time.Second)
	u.PasswordChangedAt = &after
	assert.True(t, u.ChangedPasswordAfter(issued))
}

func TestUser_JSONOmitsSecrets(t *testing.T) {
	token := "digest"
	u := User{ID: "1", Name: "Jo", Email: "jo@x.com", PasswordHash: "$2a$12$abc", PasswordResetToken: &token, Active: true}

	raw, err := json.Marshal(u)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	for _, key := range []string{"password", "passwordHash", "PasswordHash", "passwordResetToken", "active"} {
		assert.NotContains(t, out, key)
	}
	assert.Equal(t, "jo@x.com", out["email"])
}

func TestTour_MarshalJSONAddsDurationWeeks(t *testing.T) {
	raw, err := json.Marshal(Tour{ID: "t1", Name: "The Forest Hiker", Duration: 14, SecretTour: true})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, 2.0, out["durationWeeks"])
	assert.Equal(t, "The Forest Hiker", out["name"])
	assert.NotContains(t, out, "secretTour")
	assert.NotContains(t, out, "SecretTour")
}

func TestRoundRating(t *testing.T) {
	assert.Equal(t, 4.7, RoundRating(4.666666))
	assert.Equal(t, 4.0, RoundRating(4.04))
}
