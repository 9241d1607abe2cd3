package eventbus

import (
	"encoding/json"
	"testing"
)

type tickPayload struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func TestNewEnvelopeRoundTrips(t *testing.T) {
	t.Parallel()
	payload := tickPayload{Symbol: "BTCUSDT", Price: "65000.50"}

	envelope, err := NewEnvelope("marketdata", "tick.updated", payload, map[string]string{"exchange": "binance"})
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	if envelope.Version != EnvelopeVersion {
		t.Errorf("Version = %d, want %d", envelope.Version, EnvelopeVersion)
	}
	if envelope.Source != "marketdata" || envelope.EventType != "tick.updated" {
		t.Errorf("envelope = %+v, unexpected source/event_type", envelope)
	}

	var decoded tickPayload
	if err := envelope.Unmarshal(&decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded != payload {
		t.Errorf("decoded = %+v, want %+v", decoded, payload)
	}
}

func TestEnvelopeSerializesToExpectedShape(t *testing.T) {
	t.Parallel()
	envelope, err := NewEnvelope("gateway", "system.started", struct{}{}, nil)
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	out, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"id", "timestamp", "source", "event_type", "version", "data"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("envelope JSON missing field %q", key)
		}
	}
}
