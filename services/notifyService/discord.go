package notifyService

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"streakEngine/pkg/contracts/events"
)

// channelSender is the slice of *discordgo.Session the notifier needs.
type channelSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts resolution and insurance events to a channel as embeds.
// streak:updated is folded into the parlay:resolved embed and not posted on its own.
type DiscordNotifier struct {
	s         channelSender
	channelID string
	limiter   *rate.Limiter
}

// NewDiscordNotifier allows perSecond messages with a small burst, well under
// Discord's per-channel limit.
func NewDiscordNotifier(s channelSender, channelID string, perSecond float64) *DiscordNotifier {
	return &DiscordNotifier{
		s:         s,
		channelID: channelID,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), 3),
	}
}

func (d *DiscordNotifier) Name() string { return "discord" }

func (d *DiscordNotifier) Notify(ctx context.Context, ev events.Envelope) error {
	embed := discordEmbed(ev)
	if embed == nil {
		return nil
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := d.s.ChannelMessageSendComplex(d.channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		return fmt.Errorf("send discord embed: %w", err)
	}
	return nil
}

func discordEmbed(ev events.Envelope) *discordgo.MessageEmbed {
	var description strings.Builder

	switch p := ev.Payload.(type) {
	case events.ParlayResolvedPayload:
		if p.Status == "WON" {
			description.WriteString(fmt.Sprintf("Parlay #%d **won** for user %d.\n\n", p.ParlayID, ev.UserID))
			description.WriteString(fmt.Sprintf("**Value:** %d\n", p.Value))
			if p.Insured {
				description.WriteString(fmt.Sprintf("**Insurance:** -%d\n", p.InsuranceCost))
			}
			return &discordgo.MessageEmbed{Title: "Parlay Hit!", Description: description.String(), Color: 0x57F287}
		}
		description.WriteString(fmt.Sprintf("Parlay #%d **lost** for user %d.\n", p.ParlayID, ev.UserID))
		if p.Insured {
			description.WriteString("Insurance kept the streak alive.\n")
		}
		return &discordgo.MessageEmbed{Title: "Parlay Lost", Description: description.String(), Color: 0xED4245}
	case events.InsurancePayload:
		if p.Locked {
			description.WriteString(fmt.Sprintf("User %d used insurance on parlay #%d. Insurance is locked until an uninsured parlay resolves.", ev.UserID, p.ParlayID))
			return &discordgo.MessageEmbed{Title: "Insurance Locked", Description: description.String(), Color: 0xFEE75C}
		}
		description.WriteString(fmt.Sprintf("Parlay #%d resolved uninsured. Insurance is available again for user %d.", p.ParlayID, ev.UserID))
		return &discordgo.MessageEmbed{Title: "Insurance Unlocked", Description: description.String(), Color: 0x5865F2}
	}
	return nil
}
