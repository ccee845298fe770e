package event

import (
	"encoding/json"
	"testing"
)

func TestRelayChannel(t *testing.T) {
	if got := relayChannel("auction:1"); got != "fanout:auction:1" {
		t.Errorf("expected fanout:auction:1, got %s", got)
	}
	if got := relayChannel(""); got != "fanout:broadcast" {
		t.Errorf("expected fanout:broadcast, got %s", got)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	payload, err := json.Marshal(relayEnvelope{Origin: "a", Event: NewUnreadCountChanged(9007199254740993, 2)})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	envelope, err := decodeEnvelope(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if envelope.Origin != "a" || envelope.Event.Topic != "user:9007199254740993" {
		t.Errorf("unexpected envelope %+v", envelope)
	}
	if got := envelope.Event.Args[0].(json.Number).String(); got != "9007199254740993" {
		t.Errorf("user id lost precision: %s", got)
	}

	if _, err = decodeEnvelope([]byte(`{"origin":"a","event":{}}`)); err == nil {
		t.Error("expected error for event without type")
	}
}
