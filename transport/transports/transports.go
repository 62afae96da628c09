// Package transports imports every built-in transport so they register with
// the default registry.
package transports

import (
	_ "github.com/drblury/ddsctx/transport/channel"
	_ "github.com/drblury/ddsctx/transport/io"
	_ "github.com/drblury/ddsctx/transport/jetstream"
	_ "github.com/drblury/ddsctx/transport/kafka"
	_ "github.com/drblury/ddsctx/transport/nats"
	_ "github.com/drblury/ddsctx/transport/rabbitmq"
)
