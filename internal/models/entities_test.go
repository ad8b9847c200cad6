package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCachedMember_EffectiveName(t *testing.T) {
	tests := []struct {
		name     string
		member   CachedMember
		expected string
	}{
		{"nickname wins", CachedMember{Username: "isahooman", Nickname: "isa"}, "isa"},
		{"falls back to username", CachedMember{Username: "isahooman"}, "isahooman"},
		{"empty member", CachedMember{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.member.EffectiveName())
		})
	}
}

func TestCachedMember_HasRole(t *testing.T) {
	member := CachedMember{
		ID:      "100000000000000001",
		GuildID: "200000000000000001",
		RoleIDs: []string{"300000000000000001", "300000000000000002"},
	}

	assert.True(t, member.HasRole("300000000000000001"))
	assert.True(t, member.HasRole("300000000000000002"))
	assert.False(t, member.HasRole("300000000000000003"))
	assert.False(t, CachedMember{}.HasRole("300000000000000001"))
}
