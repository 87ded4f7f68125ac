package shop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/africauniverse/gameserver/internal/game/registry"
)

func TestRewardForCategory(t *testing.T) {
	tests := []struct {
		category string
		want     int
	}{
		{"Islands", 10},
		{"NFT Characters", 5},
		{"Buildings", 2},
		{"Land", 3},
		{"Weapons", 1},
		{"Foo", 1},
		{"", 1},
		{"islands", 1}, // case sensitive
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			assert.Equal(t, tt.want, RewardForCategory(tt.category))
		})
	}
}

// The reward mapping is total: any string maps to a positive reward.
func TestRewardForCategory_Total(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		category := rapid.String().Draw(rt, "category")
		reward := RewardForCategory(category)
		if reward < 1 {
			rt.Fatalf("category %q produced reward %d", category, reward)
		}
	})
}

func TestMintProperty(t *testing.T) {
	prop := MintProperty("Land")
	assert.Equal(t, "Land Item", prop.Name)
	assert.Equal(t, 3, prop.Reward)

	prop = MintProperty("Foo")
	assert.Equal(t, "Foo Item", prop.Name)
	assert.Equal(t, 1, prop.Reward)
}

func TestDailyReward(t *testing.T) {
	assert.Equal(t, 0, DailyReward(nil))
	assert.Equal(t, 0, DailyReward([]registry.Property{}))
	assert.Equal(t, 13, DailyReward([]registry.Property{
		{Name: "Islands Item", Reward: 10},
		{Name: "Land Item", Reward: 3},
	}))
}
