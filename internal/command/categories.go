package command

import "github.com/keshon/groovebox/pkg/cmd"

// CategoryWeights orders categories in help output; unknown categories go last.
var CategoryWeights = map[string]int{
	"🕯️ Information": 0,
	"🎵 Music":        39,
	"🛠️ Maintenance": 60,
}

const unknownCategoryWeight = 100

// CategoryOf returns the category of a registered command, or "" when it has none.
func CategoryOf(c cmd.Command) string {
	if meta, ok := cmd.Root(c).(DiscordMeta); ok {
		return meta.Category()
	}
	if meta, ok := c.(DiscordMeta); ok {
		return meta.Category()
	}
	return ""
}

func CategoryWeight(category string) int {
	if w, ok := CategoryWeights[category]; ok {
		return w
	}
	return unknownCategoryWeight
}
