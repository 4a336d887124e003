package access

import (
	"testing"
	"time"

	"github.com/atinyakov/linkvault/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func strPtr(s string) *string { return &s }

func hashed(t *testing.T, pw string) *string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	s := string(h)
	return &s
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Second)
	pw := hashed(t, "abcd")

	tests := []struct {
		name     string
		item     *models.VaultItem
		password string
		download bool
		want     Decision
	}{
		{name: "missing item", item: nil, want: NotFound},
		{
			name: "active text",
			item: &models.VaultItem{Kind: models.KindText, Content: strPtr("hi"), ExpiresAt: future},
			want: Granted,
		},
		{
			name:     "text on download path",
			item:     &models.VaultItem{Kind: models.KindText, Content: strPtr("hi"), ExpiresAt: future},
			download: true,
			want:     NotFound,
		},
		{
			name: "expired",
			item: &models.VaultItem{Kind: models.KindText, Content: strPtr("hi"), ExpiresAt: past},
			want: Expired,
		},
		{
			name: "limit reached",
			item: &models.VaultItem{Kind: models.KindText, Content: strPtr("hi"), ExpiresAt: future, MaxViews: 2, ViewCount: 2},
			want: LimitReached,
		},
		{
			name: "unbounded views",
			item: &models.VaultItem{Kind: models.KindText, Content: strPtr("hi"), ExpiresAt: future, ViewCount: 1000},
			want: Granted,
		},
		{
			name: "expired wins over limit",
			item: &models.VaultItem{Kind: models.KindText, Content: strPtr("hi"), ExpiresAt: past, MaxViews: 1, ViewCount: 1},
			want: Expired,
		},
		{
			name:     "reclaimed file",
			item:     &models.VaultItem{Kind: models.KindFile, FileName: strPtr("a.pdf"), ExpiresAt: future},
			download: true,
			want:     NotFound,
		},
		{
			name: "reclaimed file landing page",
			item: &models.VaultItem{Kind: models.KindFile, FileName: strPtr("a.pdf"), ExpiresAt: future},
			want: NotFound,
		},
		{
			name:     "reclaimed expired file",
			item:     &models.VaultItem{Kind: models.KindFile, FileName: strPtr("a.pdf"), ExpiresAt: past},
			download: true,
			want:     NotFound,
		},
		{
			name: "reclaimed exhausted file",
			item: &models.VaultItem{Kind: models.KindFile, FileName: strPtr("a.pdf"), ExpiresAt: future, MaxViews: 1, ViewCount: 1},
			want: NotFound,
		},
		{
			name:     "wrong password on reclaimed file",
			item:     &models.VaultItem{Kind: models.KindFile, FileName: strPtr("a.pdf"), ExpiresAt: past, PasswordHash: pw},
			password: "nope",
			want:     InvalidPassword,
		},
		{
			name:     "file download",
			item:     &models.VaultItem{Kind: models.KindFile, Content: strPtr("k"), ExpiresAt: future},
			download: true,
			want:     Granted,
		},
		{
			name: "password required",
			item: &models.VaultItem{Kind: models.KindText, Content: strPtr("hi"), ExpiresAt: future, PasswordHash: pw},
			want: PasswordRequired,
		},
		{
			name:     "wrong password on expired item",
			item:     &models.VaultItem{Kind: models.KindText, Content: strPtr("hi"), ExpiresAt: past, PasswordHash: pw},
			password: "nope",
			want:     InvalidPassword,
		},
		{
			name:     "right password on expired item",
			item:     &models.VaultItem{Kind: models.KindText, Content: strPtr("hi"), ExpiresAt: past, PasswordHash: pw},
			password: "abcd",
			want:     Expired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.item, now, tt.password, tt.download)
			assert.Equal(t, tt.want, got, "got %s", got)
		})
	}
}

func TestEvaluate_PasswordScenario(t *testing.T) {
	now := time.Now()
	h, err := HashPassword("abcd")
	require.NoError(t, err)
	item := &models.VaultItem{
		Kind:         models.KindText,
		Content:      strPtr("secret"),
		PasswordHash: &h,
		ExpiresAt:    now.Add(10 * time.Minute),
	}

	assert.Equal(t, PasswordRequired, Evaluate(item, now, "", false))
	assert.Equal(t, InvalidPassword, Evaluate(item, now, "abce", false))
	assert.Equal(t, Granted, Evaluate(item, now, "abcd", false))
}

func TestStatusOf(t *testing.T) {
	now := time.Now()

	assert.Equal(t, models.StatusActive, StatusOf(now.Add(time.Minute), 0, 5, now))
	assert.Equal(t, models.StatusActive, StatusOf(now.Add(time.Minute), 3, 2, now))
	assert.Equal(t, models.StatusLimitReached, StatusOf(now.Add(time.Minute), 3, 3, now))
	assert.Equal(t, models.StatusExpired, StatusOf(now.Add(-time.Second), 0, 0, now))
	assert.Equal(t, models.StatusExpired, StatusOf(now.Add(-time.Second), 1, 1, now))
	// the boundary instant is still active
	assert.Equal(t, models.StatusActive, StatusOf(now, 0, 0, now))
}

func TestDecisionCodes(t *testing.T) {
	codes := map[Decision]string{
		Granted:          "GRANTED",
		PasswordRequired: "PASSWORD_REQUIRED",
		InvalidPassword:  "INVALID_PASSWORD",
		Expired:          "EXPIRED",
		LimitReached:     "LIMIT_REACHED",
		NotFound:         "NOT_FOUND",
	}
	for d, code := range codes {
		assert.Equal(t, code, d.Code(), d.String())
	}
}

func TestHashPassword_NeverClear(t *testing.T) {
	h, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", h)
	assert.True(t, VerifyPassword(h, "correct horse"))
	assert.False(t, VerifyPassword(h, "correct horsE"))
}
