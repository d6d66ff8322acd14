package quoteflow

import (
	"fmt"
	"io"

	"quoteflow/common"
	"quoteflow/nats"
	"quoteflow/srv"
	"quoteflow/srv/jetstream"
	"quoteflow/srv/redis"
	"quoteflow/srv/sqlite"

	"github.com/rs/zerolog/log"
)

// GetService builds the storage and change streamer named by the server
// config. The returned closer releases whatever connections were opened.
func GetService(config common.ServerConfig) (srv.Service, io.Closer, error) {
	closers := multiCloser{}

	var storage srv.Storage
	switch config.Storage {
	case common.StorageTypeRedis:
		storage = redis.NewStorage()
		log.Info().Msg("Using Redis storage")
	case common.StorageTypeSqlite, "":
		sqliteStorage, err := sqlite.NewDefaultStorage()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
		closers = append(closers, sqliteStorage)
		storage = sqliteStorage
		log.Info().Msg("Using SQLite storage")
	default:
		return nil, nil, fmt.Errorf("unknown storage type: %s", config.Storage)
	}

	var streamer srv.Streamer
	switch config.Streamer {
	case common.StreamerTypeRedis:
		streamer = redis.NewStreamer()
		log.Info().Msg("Using Redis change streamer")
	case common.StreamerTypeJetstream:
		nc, err := nats.GetConnection()
		if err != nil {
			closers.Close()
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		closers = append(closers, closerFunc(func() error { nc.Close(); return nil }))
		streamer, err = jetstream.NewStreamer(nc)
		if err != nil {
			closers.Close()
			return nil, nil, fmt.Errorf("failed to initialize JetStream streamer: %w", err)
		}
		log.Info().Msg("Using JetStream change streamer")
	case common.StreamerTypeMemory, "":
		streamer = srv.NewMemoryStreamer()
		log.Info().Msg("Using in-memory change streamer")
	default:
		closers.Close()
		return nil, nil, fmt.Errorf("unknown streamer type: %s", config.Streamer)
	}

	return srv.NewDelegator(storage, streamer), closers, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// multiCloser closes in reverse order of acquisition.
type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var firstErr error
	for i := len(m) - 1; i >= 0; i-- {
		if err := m[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
