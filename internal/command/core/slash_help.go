package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/groovebox/internal/command"
	"github.com/keshon/groovebox/internal/discord"
	"github.com/keshon/groovebox/pkg/cmd"
)

type HelpCommand struct {
	Commands *cmd.Registry
}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Show all commands" }
func (c *HelpCommand) Group() string       { return "core" }
func (c *HelpCommand) Category() string    { return "🕯️ Information" }

func (c *HelpCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
	}
}

func (c *HelpCommand) Run(_ context.Context, sc *command.SlashInteractionContext) error {
	return sc.Responder.Respond(sc.Event, discord.InfoEmbed("Help", buildHelpMessage(c.Commands)), true)
}

// buildHelpMessage groups commands by category, ordered by category weight.
func buildHelpMessage(reg *cmd.Registry) string {
	byCategory := make(map[string][]cmd.Command)
	for _, c := range reg.All() {
		cat := command.CategoryOf(c)
		byCategory[cat] = append(byCategory[cat], c)
	}

	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Slice(categories, func(i, j int) bool {
		wi, wj := command.CategoryWeight(categories[i]), command.CategoryWeight(categories[j])
		if wi != wj {
			return wi < wj
		}
		return categories[i] < categories[j]
	})

	var b strings.Builder
	for _, cat := range categories {
		label := cat
		if label == "" {
			label = "Other"
		}
		fmt.Fprintf(&b, "**%s**\n", label)
		for _, c := range byCategory[cat] {
			fmt.Fprintf(&b, "`/%s` %s\n", c.Name(), c.Description())
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
