package nats

import (
	"fmt"

	"quoteflow/common"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

func ServerURL() string {
	return fmt.Sprintf("nats://%s:%d", common.GetNatsServerHost(), common.GetNatsServerPort())
}

func GetConnection() (*nats.Conn, error) {
	nc, err := nats.Connect(ServerURL(), nats.Name("quoteflow"))
	if err != nil {
		log.Error().Err(err).Str("url", ServerURL()).Msg("Failed to connect to NATS")
		return nil, err
	}
	return nc, nil
}
