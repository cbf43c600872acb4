package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDeliveryCreated(t *testing.T) {
	ev, err := Decode(TopicDeliveryCreated, []byte(`{"deliveryId":"d1"}`))
	require.NoError(t, err)
	assert.Equal(t, DeliveryCreated{DeliveryID: "d1"}, ev)
}

func TestDecodeLocationUpdated(t *testing.T) {
	raw := []byte(`{"deliveryId":"d1","courierId":"c1","courierName":"Ana",` +
		`"latitude":-23.5705,"longitude":-46.6533,"timestamp":"2025-03-01T12:00:00Z"}`)
	ev, err := Decode(TopicLocationUpdated, raw)
	require.NoError(t, err)
	loc, ok := ev.(LocationUpdated)
	require.True(t, ok)
	assert.Equal(t, "c1", loc.CourierID)
	assert.InDelta(t, -23.5705, loc.Latitude, 1e-9)
	assert.Equal(t, 2025, loc.Timestamp.Year())
}

func TestDecodeUnknownTopic(t *testing.T) {
	_, err := Decode("delivery.archived", []byte(`{}`))
	assert.True(t, errors.Is(err, ErrUnknownTopic))
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string][]byte{
		"bad json":     []byte(`{"deliveryId":`),
		"missing id":   []byte(`{}`),
		"wrong type":   []byte(`{"deliveryId":7}`),
		"empty string": []byte(`{"deliveryId":""}`),
	}
	for name, raw := range cases {
		_, err := Decode(TopicDeliveryCreated, raw)
		assert.True(t, errors.Is(err, ErrMalformedPayload), "%s: %v", name, err)
	}
}
