package server

import (
	"context"
	"encoding/json"
	"time"
)

// serve streams telemetry to the session's peer until the context is
// cancelled or a write fails. Each cycle pulls one fix, sends it if present,
// and sleeps the configured interval; cadence is independent of fix
// availability. Records are newline-delimited JSON.
func (s *Server) serve(ctx context.Context, sess *Session) {
	logger := s.logger.With().
		Str("session", sess.ID.String()).
		Str("peer", sess.Peer).
		Logger()
	logger.Info().Msg("starting telemetry stream")

	for {
		if ctx.Err() != nil {
			return
		}

		fix := s.source.NextFix()
		if fix.Present {
			record, err := json.Marshal(fix)
			if err != nil {
				logger.Error().Err(err).Msg("failed to encode fix")
			} else {
				record = append(record, '\n')
				_ = sess.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
				if _, err := sess.conn.Write(record); err != nil {
					s.metrics.SendFailures.Inc()
					logger.Warn().Err(err).Msg("connection lost")
					return
				}
				s.metrics.RecordsSent.Inc()
			}
		} else {
			s.metrics.PollsWithoutFix.Inc()
		}

		sleepCtx(ctx, s.cfg.SendInterval)
	}
}
