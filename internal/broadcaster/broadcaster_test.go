package broadcaster

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLogBroadcasterSatisfiesInterfaceAndNeverErrors(t *testing.T) {
	var b Broadcaster = NewLogBroadcaster(zerolog.Nop())
	err := b.Broadcast(context.Background(), "pump detected", []Button{{Label: "ack", Data: "1"}}, Options{Silent: true})
	assert.NoError(t, err)
}
