// Package shop holds the purchase reward table and property minting.
package shop

import (
	"fmt"

	"github.com/africauniverse/gameserver/internal/game/registry"
)

// categoryRewards maps a marketplace category to the daily reward rate
// of properties bought from it. Categories not listed here fall back to
// defaultReward.
var categoryRewards = map[string]int{
	"Islands":        10,
	"NFT Characters": 5,
	"Buildings":      2,
	"Land":           3,
	"Weapons":        1,
}

const defaultReward = 1

// RewardForCategory returns the reward rate for a category. Total over
// all strings: unknown categories yield defaultReward.
func RewardForCategory(category string) int {
	if reward, ok := categoryRewards[category]; ok {
		return reward
	}
	return defaultReward
}

// MintProperty creates the property granted by a purchase in the given
// category. Purchases are simulated: there is no balance or inventory
// check, every purchase succeeds.
func MintProperty(category string) registry.Property {
	return registry.Property{
		Name:   fmt.Sprintf("%s Item", category),
		Reward: RewardForCategory(category),
	}
}

// DailyReward sums the reward rates over a property list.
func DailyReward(properties []registry.Property) int {
	total := 0
	for _, p := range properties {
		total += p.Reward
	}
	return total
}
