// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import "math/rand/v2"

// Recommendation limits.
const (
	DefaultRecommendations = 10
	MaxRecommendations     = 20
)

// wellKnown is the pool recommendations are drawn from.
var wellKnown = []string{
	"霸王龙", "三角龙", "剑龙", "腕龙", "迅猛龙",
	"翼龙", "雷龙", "棘龙", "异特龙", "副栉龙",
	"甲龙", "慈母龙", "重爪龙", "巨兽龙", "食肉牛龙",
	"双冠龙", "角鼻龙", "始祖鸟", "恐爪龙", "暴龙",
}

// shuffle is swapped in tests for a deterministic order.
var shuffle = rand.Shuffle

// Recommend returns count distinct well-known dinosaur names in random
// order. A count of zero or less means DefaultRecommendations; counts above
// MaxRecommendations are capped.
func Recommend(count int) []string {
	if count <= 0 {
		count = DefaultRecommendations
	}
	if count > MaxRecommendations {
		count = MaxRecommendations
	}
	names := make([]string, len(wellKnown))
	copy(names, wellKnown)
	shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
	return names[:count]
}
