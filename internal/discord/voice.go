package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

var ErrUserNotInVoice = errors.New("user not in any voice channel")

// VoiceState holds minimal voice channel state for a user.
type VoiceState struct {
	ChannelID string
	UserID    string
}

// FindUserVoiceState looks the user up in the cached guild voice states.
func FindUserVoiceState(state *discordgo.State, guildID, userID string) (*VoiceState, error) {
	guild, err := state.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving guild: %w", err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return &VoiceState{
				ChannelID: vs.ChannelID,
				UserID:    vs.UserID,
			}, nil
		}
	}
	return nil, ErrUserNotInVoice
}
