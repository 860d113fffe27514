package events

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/roadside-matching/internal/models"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestNotifyKeysByRequest(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w}
	ev := models.Event{Type: models.EventCreated, RequestID: "r9", ClientID: "c1", Status: models.StatusPending}

	require.NoError(t, p.Notify(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "r9", string(w.msgs[0].Key))

	back, err := Decode(w.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, ev.Type, back.Type)
	assert.Equal(t, ev.ClientID, back.ClientID)
}

func TestNotifyWrapsWriterError(t *testing.T) {
	p := &KafkaProducer{writer: &fakeWriter{err: errors.New("no brokers")}}
	err := p.Notify(context.Background(), models.Event{Type: models.EventCancelled, RequestID: "r1"})
	assert.ErrorContains(t, err, "publish cancelled event for r1")
}

func TestDecodeRejectsIncompleteEvents(t *testing.T) {
	_, err := Decode([]byte(`{"type":"created"}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}
