package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

type sample struct {
	Name    string `json:"name"`
	Ordinal int64  `json:"ordinal"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[sample]([]byte(`{"name":"oryx","ordinal":4}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if got.Name != "oryx" || got.Ordinal != 4 {
		t.Errorf("got %+v", got)
	}
	if _, err := DecodeJSON[sample]([]byte(`{"name":`)); err == nil {
		t.Error("truncated payload decoded without error")
	}
}

func TestConsumerOptions(t *testing.T) {
	rc := kafka.ReaderConfig{GroupID: "shared", StartOffset: kafka.LastOffset}
	for _, opt := range []ConsumerOption{WithGroupID("searcher-host-1"), FromBeginning()} {
		opt(&rc)
	}
	if rc.GroupID != "searcher-host-1" {
		t.Errorf("group = %q", rc.GroupID)
	}
	if rc.StartOffset != kafka.FirstOffset {
		t.Errorf("start offset = %d", rc.StartOffset)
	}
}

func TestEncode(t *testing.T) {
	msg, err := encode(Event{Key: "oryx", Value: sample{Name: "oryx", Ordinal: 4}})
	if err != nil {
		t.Fatal(err)
	}
	if string(msg.Key) != "oryx" || string(msg.Value) != `{"name":"oryx","ordinal":4}` {
		t.Errorf("message = %s / %s", msg.Key, msg.Value)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "application/json" {
		t.Errorf("headers = %+v", msg.Headers)
	}
	if _, err := encode(Event{Key: "bad", Value: make(chan int)}); err == nil {
		t.Error("unencodable value accepted")
	}
}
