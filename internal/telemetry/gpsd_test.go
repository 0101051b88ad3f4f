package telemetry

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTPV_FullFix(t *testing.T) {
	line := []byte(`{"class":"TPV","mode":3,"lat":59.3293,"lon":18.0686,"alt":12.5,"speed":1.25,"time":"2026-08-26T10:00:00.000Z"}` + "\n")

	fix, ok := parseTPV(line)
	require.True(t, ok)
	require.True(t, fix.Present)
	assert.Equal(t, "gps", fix.Type)
	assert.Equal(t, 59.3293, fix.Latitude)
	assert.Equal(t, 18.0686, fix.Longitude)
	assert.Equal(t, 12.5, fix.Altitude)
	assert.Equal(t, 1.25, fix.Speed)
	assert.Equal(t, "2026-08-26T10:00:00.000Z", fix.Timestamp)
}

func TestParseTPV_AltMSLFallback(t *testing.T) {
	line := []byte(`{"class":"TPV","mode":3,"lat":1.0,"lon":2.0,"altMSL":33.0}`)

	fix, ok := parseTPV(line)
	require.True(t, ok)
	require.True(t, fix.Present)
	assert.Equal(t, 33.0, fix.Altitude)
}

func TestParseTPV_NoLock(t *testing.T) {
	// Mode 1 means gpsd is up but has no satellite lock.
	fix, ok := parseTPV([]byte(`{"class":"TPV","mode":1}`))
	assert.True(t, ok)
	assert.False(t, fix.Present)
}

func TestParseTPV_MissingCoordinates(t *testing.T) {
	// A 2D/3D mode report can still lack lat/lon while the receiver settles.
	fix, ok := parseTPV([]byte(`{"class":"TPV","mode":2,"speed":0.5}`))
	assert.True(t, ok)
	assert.False(t, fix.Present)
}

func TestParseTPV_OtherClasses(t *testing.T) {
	for _, line := range []string{
		`{"class":"VERSION","release":"3.25"}`,
		`{"class":"SKY","satellites":[]}`,
		`{"class":"DEVICES","devices":[]}`,
	} {
		_, ok := parseTPV([]byte(line))
		assert.False(t, ok, line)
	}
}

func TestParseTPV_Garbage(t *testing.T) {
	_, ok := parseTPV([]byte("not json at all\n"))
	assert.False(t, ok)
}

// fakeGpsd accepts one connection and replays the given lines after the
// client's WATCH command arrives.
func fakeGpsd(t *testing.T, lines []string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// Wait for the WATCH command before streaming reports.
		if _, err := bufio.NewReader(conn).ReadString('\n'); err != nil {
			return
		}
		for _, line := range lines {
			if _, err := conn.Write([]byte(line + "\n")); err != nil {
				return
			}
		}
		// Keep the connection open until the test finishes so the source
		// hits its read deadline instead of EOF.
		time.Sleep(2 * time.Second)
	}()

	return ln.Addr().String()
}

func TestGpsdSource_ReturnsFreshestFix(t *testing.T) {
	addr := fakeGpsd(t, []string{
		`{"class":"VERSION","release":"3.25"}`,
		`{"class":"TPV","mode":3,"lat":10.0,"lon":20.0,"time":"t1"}`,
		`{"class":"SKY","satellites":[]}`,
		`{"class":"TPV","mode":3,"lat":11.0,"lon":21.0,"time":"t2"}`,
	})

	src := NewGpsdSource(zerolog.Nop(), addr)
	src.readTimeout = 200 * time.Millisecond
	defer src.Close()

	fix := src.NextFix()
	require.True(t, fix.Present)
	assert.Equal(t, 11.0, fix.Latitude)
	assert.Equal(t, 21.0, fix.Longitude)
	assert.Equal(t, "t2", fix.Timestamp)
}

func TestGpsdSource_NoFixWhileSettling(t *testing.T) {
	addr := fakeGpsd(t, []string{
		`{"class":"VERSION","release":"3.25"}`,
		`{"class":"TPV","mode":1}`,
	})

	src := NewGpsdSource(zerolog.Nop(), addr)
	src.readTimeout = 200 * time.Millisecond
	defer src.Close()

	fix := src.NextFix()
	assert.False(t, fix.Present)
}

func TestGpsdSource_DaemonUnreachable(t *testing.T) {
	src := NewGpsdSource(zerolog.Nop(), "127.0.0.1:1")
	src.dialTimeout = 200 * time.Millisecond
	defer src.Close()

	fix := src.NextFix()
	assert.False(t, fix.Present)
}

func TestGpsdSource_CloseWithoutConnect(t *testing.T) {
	src := NewGpsdSource(zerolog.Nop(), "127.0.0.1:1")
	assert.NoError(t, src.Close())
}
