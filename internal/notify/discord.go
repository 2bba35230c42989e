// Package notify delivers engine events to a Discord webhook. It sits on
// the worker side of the queue; the engine itself never blocks on delivery.
package notify

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"caixa/internal/amqp"
	"caixa/internal/core"
)

const (
	colorDonation = 0x4ade80
	colorProposal = 0x6366f1
)

type DiscordNotifier struct {
	session   *discordgo.Session
	webhookID string
	token     string
	orgName   string
}

// NewDiscordNotifier builds a webhook-only notifier. Webhook execution
// needs no bot token, so the session is created unauthenticated.
func NewDiscordNotifier(webhookID, token, orgName string) (*DiscordNotifier, error) {
	if webhookID == "" || token == "" {
		return nil, fmt.Errorf("discord webhook id and token are required")
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &DiscordNotifier{
		session:   session,
		webhookID: webhookID,
		token:     token,
		orgName:   orgName,
	}, nil
}

// Send formats and delivers one event. Unknown kinds are skipped, not
// errors: the queue may carry kinds added by newer publishers.
func (n *DiscordNotifier) Send(msg *amqp.EventMessage) error {
	var embed *discordgo.MessageEmbed

	switch msg.Kind {
	case amqp.KindDonationRecorded:
		embed = n.donationEmbed(msg)
	case amqp.KindProposalCreated:
		embed = n.proposalEmbed(msg)
	default:
		slog.Warn("Skipping event of unknown kind", "kind", msg.Kind)
		return nil
	}

	_, err := n.session.WebhookExecute(n.webhookID, n.token, false, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		return fmt.Errorf("execute webhook: %w", err)
	}

	slog.Info("Discord notification sent", "kind", msg.Kind)
	return nil
}

func (n *DiscordNotifier) donationEmbed(msg *amqp.EventMessage) *discordgo.MessageEmbed {
	donor := msg.DonorHandle
	if donor == "" {
		donor = "Anônimo"
	}
	amount := core.Money{Cents: msg.AmountCents}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Valor", Value: fmt.Sprintf("%s %s", msg.Currency, amount), Inline: true},
		{Name: "Doador", Value: donor, Inline: true},
	}
	if msg.Message != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Mensagem", Value: msg.Message})
	}

	return &discordgo.MessageEmbed{
		Title:     "Nova Doação!",
		Color:     colorDonation,
		Fields:    fields,
		Timestamp: msg.Timestamp.Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: n.orgName},
	}
}

func (n *DiscordNotifier) proposalEmbed(msg *amqp.EventMessage) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Nova Proposta",
		Description: msg.ProposalTitle,
		Color:       colorProposal,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Autor", Value: msg.AuthorHandle, Inline: true},
		},
		Timestamp: msg.Timestamp.Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: n.orgName},
	}
}
