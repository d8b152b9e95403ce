package protocol_test

import (
	"encoding/json"
	"testing"

	"storageracks.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	if err := v.ValidateHello([]byte(`{"type":"HELLO","protocol_version":"1.0","client_name":"bot1"}`)); err != nil {
		t.Fatalf("hello: %v", err)
	}
	good := []string{
		`{"type":"REQ","id":"1","op":"PLACE_RACK","pos":[1,0,0],"tier":0}`,
		`{"type":"REQ","id":"2","op":"REMOVE","pos":[1,0,0]}`,
		`{"type":"REQ","id":"3","op":"SET_SLOT","pos":[1,0,0],"slot":4,"item":"minecraft:stone","count":12}`,
		`{"type":"REQ","id":"4","op":"HAS_ITEM","pos":[0,0,0],"item":"minecraft:stone","min":10}`,
		`{"type":"REQ","id":"5","op":"LIST","pos":[0,0,0],"filter":"iron","sort":"COUNT_DESC"}`,
	}
	for _, s := range good {
		if err := v.ValidateReq([]byte(s)); err != nil {
			t.Fatalf("validate %s: %v", s, err)
		}
	}
}

func TestSchemas_RejectBadRequests(t *testing.T) {
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	bad := []string{
		`{"type":"REQ","id":"1","op":"EXPLODE","pos":[0,0,0]}`,
		`{"type":"REQ","id":"1","op":"REMOVE","pos":[0,0]}`,
		`{"type":"REQ","id":"1","op":"PLACE_RACK","pos":[0,0,0]}`,
		`{"type":"REQ","id":"1","op":"SET_SLOT","pos":[0,0,0],"slot":-1,"count":1}`,
		`{"type":"REQ","id":"1","op":"HAS_ITEM","pos":[0,0,0]}`,
		`{"type":"REQ","id":"1","op":"LIST","pos":[0,0,0],"sort":"RANDOM"}`,
		`{"type":"REQ","id":"1","op":"REMOVE","pos":[0.5,0,0]}`,
	}
	for _, s := range bad {
		if err := v.ValidateReq([]byte(s)); err == nil {
			t.Fatalf("expected rejection: %s", s)
		}
	}
	if err := v.ValidateHello([]byte(`{"type":"HELLO"}`)); err == nil {
		t.Fatalf("expected hello rejection")
	}
}

func TestSchemas_WelcomeMatchesStruct(t *testing.T) {
	s, err := protocol.CompileSchema("welcome.schema.json")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	b, _ := json.Marshal(protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "s1",
		WorldID:         "world_1",
		WorldParams:     protocol.WorldParams{TickRateHz: 20, BaseSlots: 27, SlotsPerTier: 9, MaxRackTier: 5, TierUnit: 20},
	})
	var doc any
	_ = json.Unmarshal(b, &doc)
	if err := s.Validate(doc); err != nil {
		t.Fatalf("welcome: %v", err)
	}
}
