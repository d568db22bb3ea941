/*
Package log provides structured logging for pressbus using zerolog.

The log package wraps zerolog with a global logger configured once at process
startup. Components obtain child loggers carrying identifying fields so that
every event can be traced back to the subsystem or connection that emitted it.

# Usage

Initialization (once, from the serve command):

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
	})

Component loggers:

	logger := log.WithComponent("server")
	logger.Info().Str("address", addr).Msg("listening")

Connection loggers carry conn_id and remote_addr on every event:

	logger := log.WithConn(connID, conn.RemoteAddr().String())
	logger.Debug().Str("type", string(msg.Type)).Msg("message received")

Console output (human readable) is the default; JSON output is intended for
log aggregation in production deployments.
*/
package log
