package domain

import "strings"

// Direction places an event on the left or right side of the chat timeline.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// DirectionOf classifies a channel. Contact-originated channels are inbound;
// everything produced by the CRM, the system or an AI agent is outbound.
func DirectionOf(channel string) Direction {
	ch := strings.ToLower(strings.TrimSpace(channel))
	switch {
	case strings.HasPrefix(ch, string(ChannelWhatsAppOut)),
		strings.HasPrefix(ch, "ai."),
		strings.HasPrefix(ch, "system."),
		ch == string(ChannelCRMNote):
		return DirectionOut
	case strings.HasPrefix(ch, string(ChannelWhatsAppIn)):
		return DirectionIn
	case IsIngestChannel(Channel(ch)):
		return DirectionIn
	default:
		return DirectionOut
	}
}

// TimelineEntry is a lead event projected for the chat view.
type TimelineEntry struct {
	Event     LeadEvent
	Direction Direction
	Text      string
}

// Timeline projects events, already in ascending order, for display.
func Timeline(events []LeadEvent) []TimelineEntry {
	entries := make([]TimelineEntry, 0, len(events))
	for _, ev := range events {
		entries = append(entries, TimelineEntry{
			Event:     ev,
			Direction: DirectionOf(ev.Channel),
			Text:      ExtractText(DecodePayload(ev.Payload)),
		})
	}
	return entries
}
