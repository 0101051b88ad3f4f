package telemetry

import (
	"bufio"
	"encoding/json"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// watchCommand switches the gpsd session into streaming JSON mode.
const watchCommand = `?WATCH={"enable":true,"json":true};` + "\n"

// GpsdSource polls position fixes from a gpsd daemon over its TCP JSON
// protocol. All failures (daemon unreachable, malformed reports, no
// satellite lock) surface as non-present fixes, never as errors; the
// connection is re-established on the next poll after a failure.
type GpsdSource struct {
	logger      zerolog.Logger
	addr        string
	dialTimeout time.Duration
	readTimeout time.Duration

	conn   net.Conn
	reader *bufio.Reader
}

// NewGpsdSource creates a gpsd-backed telemetry source. No connection is
// made until the first poll.
func NewGpsdSource(logger zerolog.Logger, addr string) *GpsdSource {
	return &GpsdSource{
		logger:      logger.With().Str("component", "gpsd").Logger(),
		addr:        addr,
		dialTimeout: 2 * time.Second,
		readTimeout: time.Second,
	}
}

// NextFix returns the freshest fix gpsd has reported, or a non-present fix
// when gpsd is unreachable or has no satellite lock. It drains all buffered
// reports so a slow poll cadence does not serve stale positions.
func (s *GpsdSource) NextFix() Fix {
	if s.conn == nil {
		if err := s.connect(); err != nil {
			s.logger.Warn().Err(err).Msg("gpsd unavailable")
			return Fix{}
		}
	}

	var last Fix
	deadline := time.Now().Add(s.readTimeout)
	_ = s.conn.SetReadDeadline(deadline)

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// Drained everything gpsd buffered for this cycle.
				return last
			}
			s.logger.Warn().Err(err).Msg("gpsd read failed, reconnecting next poll")
			s.disconnect()
			return last
		}

		if fix, ok := parseTPV(line); ok {
			last = fix
		}
	}
}

// Close releases the gpsd connection. Safe to call when never connected.
func (s *GpsdSource) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.reader = nil
	return err
}

func (s *GpsdSource) connect() error {
	conn, err := net.DialTimeout("tcp", s.addr, s.dialTimeout)
	if err != nil {
		return err
	}
	if _, err := conn.Write([]byte(watchCommand)); err != nil {
		conn.Close()
		return err
	}

	s.conn = conn
	s.reader = bufio.NewReader(conn)
	s.logger.Info().Str("addr", s.addr).Msg("connected to gpsd")
	return nil
}

func (s *GpsdSource) disconnect() {
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = nil
	s.reader = nil
}

// tpvReport is the subset of a gpsd TPV (time-position-velocity) report the
// daemon cares about. Lat/lon are pointers so an absent field is
// distinguishable from coordinate zero.
type tpvReport struct {
	Class  string   `json:"class"`
	Mode   int      `json:"mode"` // 0/1 = no fix, 2 = 2D, 3 = 3D
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Alt    *float64 `json:"alt"`
	AltMSL *float64 `json:"altMSL"`
	Speed  float64  `json:"speed"`
	Time   string   `json:"time"`
}

// parseTPV extracts a fix from one gpsd report line. The second return is
// false for non-TPV classes (VERSION, DEVICES, SKY, ...) and unparseable
// lines. A TPV without a usable fix yields a present=false Fix with ok=true.
func parseTPV(line []byte) (Fix, bool) {
	var report tpvReport
	if err := json.Unmarshal(line, &report); err != nil {
		return Fix{}, false
	}
	if report.Class != "TPV" {
		return Fix{}, false
	}
	if report.Mode < 2 || report.Lat == nil || report.Lon == nil {
		return Fix{}, true
	}

	alt := 0.0
	if report.Alt != nil {
		alt = *report.Alt
	} else if report.AltMSL != nil {
		alt = *report.AltMSL
	}

	return NewFix(*report.Lat, *report.Lon, alt, report.Speed, report.Time), true
}
