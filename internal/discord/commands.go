package discord

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/groovebox/internal/command"
	"github.com/keshon/groovebox/pkg/cmd"
)

// registerCommands syncs a guild's slash commands with the registry: obsolete
// ones are deleted and only commands whose definition changed are sent.
func (b *Bot) registerCommands(guildID string) error {
	appID, err := b.appID()
	if err != nil {
		return err
	}

	remote, err := b.dg.ApplicationCommands(appID, guildID)
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}

	plan := planCommandSync(remote, buildCommandDefinitions(b.commands))
	log := b.log.With(slog.String("guild", guildID))

	for _, rc := range plan.remove {
		log.Info("Deleting obsolete command", slog.String("command", rc.Name))
		if err := b.dg.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			log.Error("Failed to delete command", slog.String("command", rc.Name), slog.Any("err", err))
		}
	}
	for _, def := range plan.upsert {
		if _, err := b.dg.ApplicationCommandCreate(appID, guildID, def); err != nil {
			log.Error("Failed to register command", slog.String("command", def.Name), slog.Any("err", err))
			continue
		}
		log.Info("Registered command", slog.String("command", def.Name))
	}
	return nil
}

type commandSync struct {
	upsert []*discordgo.ApplicationCommand
	remove []*discordgo.ApplicationCommand
}

// planCommandSync compares remote and local definitions by hash.
func planCommandSync(remote, local []*discordgo.ApplicationCommand) commandSync {
	remoteByName := make(map[string]*discordgo.ApplicationCommand, len(remote))
	for _, rc := range remote {
		remoteByName[rc.Name] = rc
	}

	var plan commandSync
	localNames := make(map[string]struct{}, len(local))
	for _, def := range local {
		localNames[def.Name] = struct{}{}
		if rc, ok := remoteByName[def.Name]; ok && hashCommand(rc) == hashCommand(def) {
			continue
		}
		plan.upsert = append(plan.upsert, def)
	}
	for _, rc := range remote {
		if _, ok := localNames[rc.Name]; !ok {
			plan.remove = append(plan.remove, rc)
		}
	}
	return plan
}

func buildCommandDefinitions(reg *cmd.Registry) []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range reg.All() {
		if def := command.Definition(c); def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

// appID returns the bot's application ID, fetching it when State has no user yet.
func (b *Bot) appID() (string, error) {
	if u := b.dg.State.User; u != nil && u.ID != "" {
		return u.ID, nil
	}
	u, err := b.dg.User("@me")
	if err != nil {
		return "", fmt.Errorf("failed to fetch bot user: %w", err)
	}
	return u.ID, nil
}

// hashCommand returns a deterministic SHA-1 of a command's stable fields.
// IDs and versions assigned by Discord are ignored.
func hashCommand(c *discordgo.ApplicationCommand) string {
	typ := c.Type
	if typ == 0 {
		typ = discordgo.ChatApplicationCommand
	}
	stable := map[string]any{
		"name":        c.Name,
		"description": c.Description,
		"type":        typ,
	}
	if len(c.Options) > 0 {
		stable["options"] = normalizeOptions(c.Options)
	}
	data, _ := json.Marshal(stable)
	return fmt.Sprintf("%x", sha1.Sum(data))
}

func normalizeOptions(opts []*discordgo.ApplicationCommandOption) []map[string]any {
	out := make([]map[string]any, len(opts))
	for i, o := range opts {
		entry := map[string]any{
			"name":        o.Name,
			"description": o.Description,
			"type":        o.Type,
			"required":    o.Required,
		}
		if len(o.Choices) > 0 {
			choices := make([]map[string]any, len(o.Choices))
			for j, ch := range o.Choices {
				choices[j] = map[string]any{"name": ch.Name, "value": ch.Value}
			}
			entry["choices"] = choices
		}
		if len(o.Options) > 0 {
			entry["options"] = normalizeOptions(o.Options)
		}
		out[i] = entry
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["name"].(string) < out[j]["name"].(string)
	})
	return out
}
