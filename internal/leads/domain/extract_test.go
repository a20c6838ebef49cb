package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractContactForm(t *testing.T) {
	branch := uuid.New()
	p := DecodePayload([]byte(`{"nome":"Ana","telefone":"11988887777","email":"ana@example.com","branchId":"` + branch.String() + `"}`))

	c := ExtractContact(ChannelForm, p)

	assert.Equal(t, "Ana", c.Name)
	require.NotNil(t, c.Phone)
	assert.Equal(t, "11988887777", *c.Phone)
	require.NotNil(t, c.Email)
	assert.Equal(t, "ana@example.com", *c.Email)
	require.NotNil(t, c.BranchID)
	assert.Equal(t, branch, *c.BranchID)
}

func TestExtractContactFallbacks(t *testing.T) {
	p := DecodePayload([]byte(`{"name":"  ","full_name":"Bruno","phone_number":11988887777,"branchId":"TRIAGEM"}`))

	c := ExtractContact(ChannelSite, p)

	assert.Equal(t, "Bruno", c.Name)
	require.NotNil(t, c.Phone)
	assert.Equal(t, "11988887777", *c.Phone)
	assert.Nil(t, c.Email)
	assert.Nil(t, c.BranchID, "non-uuid branch hints are ignored")
}

func TestExtractContactMetaLeadAds(t *testing.T) {
	p := DecodePayload([]byte(`{
		"leadgen_id": "123",
		"field_data": [
			{"name": "full_name", "values": ["Carla"]},
			{"name": "phone_number", "values": ["", "+55 21 97777-6666"]},
			{"name": "email", "values": ["carla@example.com"]}
		]
	}`))

	c := ExtractContact(ChannelMetaLeads, p)

	assert.Equal(t, "Carla", c.Name)
	require.NotNil(t, c.Phone)
	assert.Equal(t, "+55 21 97777-6666", *c.Phone)
	require.NotNil(t, c.Email)
	assert.Equal(t, "carla@example.com", *c.Email)
}

func TestExtractContactEmptyPayload(t *testing.T) {
	c := ExtractContact(ChannelForm, DecodePayload([]byte(`[1,2]`)))
	assert.Equal(t, Contact{}, c)
}

func TestExtractText(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"message", `{"message":" hi "}`, "hi"},
		{"mensagem", `{"mensagem":"olá"}`, "olá"},
		{"text object", `{"text":{"body":"from meta"}}`, "from meta"},
		{"body", `{"body":"plain"}`, "plain"},
		{"priority", `{"body":"last","text":"first"}`, "first"},
		{"blank skipped", `{"message":"   ","text":"used"}`, "used"},
		{"none", `{"foo":"bar"}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractText(DecodePayload([]byte(tc.body))))
		})
	}
}

func TestTimeline(t *testing.T) {
	events := []LeadEvent{
		{Channel: "form", Payload: json.RawMessage(`{"nome":"Ana"}`)},
		{Channel: "whatsapp.in", Payload: json.RawMessage(`{"from":"5511","text":"oi"}`)},
		{Channel: "whatsapp.out", Payload: json.RawMessage(`{"to":"5511","text":"Recebi"}`)},
		{Channel: "system.manager_decision", Payload: json.RawMessage(`{}`)},
		{Channel: "crm.note", Payload: json.RawMessage(`{"message":"ligar amanhã"}`)},
		{Channel: "ai.summary", Payload: json.RawMessage(`null`)},
	}

	entries := Timeline(events)

	require.Len(t, entries, len(events))
	dirs := make([]Direction, 0, len(entries))
	for _, e := range entries {
		dirs = append(dirs, e.Direction)
	}
	assert.Equal(t, []Direction{DirectionIn, DirectionIn, DirectionOut, DirectionOut, DirectionOut, DirectionOut}, dirs)
	assert.Equal(t, "oi", entries[1].Text)
	assert.Equal(t, "ligar amanhã", entries[4].Text)
	assert.Equal(t, "", entries[5].Text)
}
