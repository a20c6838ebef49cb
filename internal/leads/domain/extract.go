package domain

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Channel tags where an event came from or went to.
type Channel string

const (
	ChannelForm            Channel = "form"
	ChannelSite            Channel = "site"
	ChannelMetaLeads       Channel = "meta_leads"
	ChannelWhatsApp        Channel = "whatsapp"
	ChannelWhatsAppIn      Channel = "whatsapp.in"
	ChannelWhatsAppOut     Channel = "whatsapp.out"
	ChannelManagerDecision Channel = "system.manager_decision"
	ChannelCRMNote         Channel = "crm.note"
)

// IngestChannels are the channels accepted by the ingestion endpoints.
var IngestChannels = []Channel{ChannelForm, ChannelSite, ChannelMetaLeads, ChannelWhatsApp}

// IsIngestChannel reports whether c can be passed to ingestion.
func IsIngestChannel(c Channel) bool {
	for _, candidate := range IngestChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// Payload is a decoded inbound body.
type Payload map[string]any

// DecodePayload parses raw JSON into a Payload. Non-object bodies yield an empty payload.
func DecodePayload(raw []byte) Payload {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil || p == nil {
		return Payload{}
	}
	return p
}

// Extractor returns a candidate value from a payload, or "" when absent.
type Extractor func(Payload) string

// FirstNonBlank runs extractors in order and returns the first non-blank result.
func FirstNonBlank(p Payload, extractors []Extractor) string {
	for _, extract := range extractors {
		if v := strings.TrimSpace(extract(p)); v != "" {
			return v
		}
	}
	return ""
}

// Key reads a top-level scalar. Numbers are rendered without exponent so
// phones posted as JSON numbers survive.
func Key(name string) Extractor {
	return func(p Payload) string {
		return scalar(p[name])
	}
}

// Nested reads a scalar one object level deep, e.g. Nested("text", "body").
func Nested(parent, child string) Extractor {
	return func(p Payload) string {
		obj, ok := p[parent].(map[string]any)
		if !ok {
			return ""
		}
		return scalar(obj[child])
	}
}

// MetaField reads the first value of a Meta lead-ads field_data entry whose
// name matches one of names.
func MetaField(names ...string) Extractor {
	return func(p Payload) string {
		for _, source := range []any{p["field_data"], nestedValue(p, "lead", "field_data")} {
			entries, ok := source.([]any)
			if !ok {
				continue
			}
			for _, name := range names {
				for _, raw := range entries {
					entry, ok := raw.(map[string]any)
					if !ok || !strings.EqualFold(scalar(entry["name"]), name) {
						continue
					}
					values, _ := entry["values"].([]any)
					for _, v := range values {
						if s := strings.TrimSpace(scalar(v)); s != "" {
							return s
						}
					}
				}
			}
		}
		return ""
	}
}

func nestedValue(p Payload, parent, child string) any {
	obj, ok := p[parent].(map[string]any)
	if !ok {
		return nil
	}
	return obj[child]
}

func scalar(v any) string {
	switch typed := v.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case json.Number:
		return typed.String()
	default:
		return ""
	}
}

// ContactExtractors lists, per canonical field, the payload lookups tried in order.
type ContactExtractors struct {
	Name   []Extractor
	Phone  []Extractor
	Email  []Extractor
	Branch []Extractor
}

var commonContact = ContactExtractors{
	Name:   []Extractor{Key("nome"), Key("name"), Key("full_name"), Key("nome_completo")},
	Phone:  []Extractor{Key("telefone"), Key("phone"), Key("phone_number"), Key("whatsapp"), Key("celular")},
	Email:  []Extractor{Key("email"), Key("e-mail")},
	Branch: []Extractor{Key("branchId"), Key("branch_id")},
}

// contactExtractors is the per-channel lookup table. Channels not listed use commonContact.
var contactExtractors = map[Channel]ContactExtractors{
	ChannelMetaLeads: {
		Name:   append([]Extractor{MetaField("full_name", "nome", "name")}, commonContact.Name...),
		Phone:  append([]Extractor{MetaField("phone_number", "telefone", "phone")}, commonContact.Phone...),
		Email:  append([]Extractor{MetaField("email")}, commonContact.Email...),
		Branch: commonContact.Branch,
	},
	ChannelWhatsApp: {
		Name:   append(append([]Extractor{}, commonContact.Name...), Nested("profile", "name")),
		Phone:  append(append([]Extractor{}, commonContact.Phone...), Key("from")),
		Email:  commonContact.Email,
		Branch: commonContact.Branch,
	},
}

// Contact is the canonical contact shape extracted from any channel.
type Contact struct {
	Name     string
	Phone    *string
	Email    *string
	BranchID *uuid.UUID
}

// ExtractContact maps a channel payload to the canonical contact. A branch
// hint that is not a UUID is ignored.
func ExtractContact(channel Channel, p Payload) Contact {
	table, ok := contactExtractors[channel]
	if !ok {
		table = commonContact
	}

	contact := Contact{
		Name:  FirstNonBlank(p, table.Name),
		Phone: optional(FirstNonBlank(p, table.Phone)),
		Email: optional(FirstNonBlank(p, table.Email)),
	}
	if branch := FirstNonBlank(p, table.Branch); branch != "" {
		if id, err := uuid.Parse(branch); err == nil {
			contact.BranchID = &id
		}
	}
	return contact
}

// textExtractors is the priority list for message text in send requests and
// event payloads. Each key accepts a plain string or an object with "body".
var textExtractors = []Extractor{
	Key("message"), Nested("message", "body"),
	Key("mensagem"), Nested("mensagem", "body"),
	Key("text"), Nested("text", "body"),
	Key("body"), Nested("body", "body"),
}

// ExtractText returns the first non-blank message text in p.
func ExtractText(p Payload) string {
	return FirstNonBlank(p, textExtractors)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
