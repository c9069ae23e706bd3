package clock

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
)

// ntpEpochOffset is the number of seconds between the NTP epoch
// (1900-01-01) and the Unix epoch (1970-01-01), per spec §4.1.
const ntpEpochOffset = 2208988800

// sntpPacketSize is the fixed size of an NTP client/server packet.
const sntpPacketSize = 48

// SNTPResult is one successful sync sample.
type SNTPResult struct {
	Server    string
	TxUnix    float64 // server transmit timestamp, unix seconds
	Mono      float64 // local monotonic reading taken at receive time
	Offset    float64 // TxUnix - Mono
	RTT       float64 // round-trip time in seconds
	DriftMs   float64 // (TxUnix - time.Now()) in milliseconds
}

// SNTPClient issues SNTP queries against a configured server list.
type SNTPClient struct {
	Servers []string
	Timeout time.Duration
	// MaxTries is the number of queries attempted before giving up,
	// cycling through Servers in order. The first success wins.
	MaxTries int
}

// NewSNTPClient builds a client with the spec's defaults (§6): 1.5s
// per-server timeout, 3 max tries.
func NewSNTPClient(servers []string) *SNTPClient {
	return &SNTPClient{
		Servers:  servers,
		Timeout:  1500 * time.Millisecond,
		MaxTries: 3,
	}
}

// errAllServersFailed is returned when every configured server failed.
var errAllServersFailed = errors.New("clock: all SNTP servers failed")

// Sync attempts each server in order up to MaxTries; the first success
// wins. monoNow supplies the local monotonic reading to pair with the
// server's transmit timestamp.
func (c *SNTPClient) Sync(monoNow func() float64) (*SNTPResult, error) {
	tries := c.MaxTries
	if tries <= 0 {
		tries = 1
	}
	if len(c.Servers) == 0 {
		return nil, errAllServersFailed
	}

	var lastErr error
	for i := 0; i < tries; i++ {
		server := c.Servers[i%len(c.Servers)]
		res, err := c.queryOnce(server, monoNow)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: last error: %v", errAllServersFailed, lastErr)
}

// MeasureLatency probes the given server several times concurrently and
// returns the minimum observed RTT plus the drift of the most recent
// sample, per spec §4.1 "Latency estimate". Probes fan out the way
// facebook-time's sptp client fans out multi-path probes with an
// errgroup.
func (c *SNTPClient) MeasureLatency(server string, tries int, monoNow func() float64) (rttMinMs float64, driftMs float64, err error) {
	if tries <= 0 {
		tries = 3
	}

	results := make([]*SNTPResult, tries)
	var g errgroup.Group
	for i := 0; i < tries; i++ {
		i := i
		g.Go(func() error {
			res, qerr := c.queryOnce(server, monoNow)
			if qerr != nil {
				return nil // a failed probe just doesn't contribute a sample
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	minRTT := -1.0
	var latest *SNTPResult
	for _, r := range results {
		if r == nil {
			continue
		}
		if minRTT < 0 || r.RTT < minRTT {
			minRTT = r.RTT
		}
		if latest == nil || r.Mono > latest.Mono {
			latest = r
		}
	}
	if latest == nil {
		return 0, 0, errAllServersFailed
	}
	return minRTT * 1000.0, latest.DriftMs, nil
}

func (c *SNTPClient) queryOnce(server string, monoNow func() float64) (*SNTPResult, error) {
	addr := server
	if _, _, err := net.SplitHostPort(server); err != nil {
		addr = net.JoinHostPort(server, "123")
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}

	conn, err := net.DialTimeout("udp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("sntp: dial %s: %w", server, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("sntp: set deadline: %w", err)
	}

	req := make([]byte, sntpPacketSize)
	// LI = 0, VN = 4, Mode = 3 (client) packed into the first byte.
	req[0] = 0<<6 | 4<<3 | 3

	sendTime := time.Now()
	if _, err := conn.Write(req); err != nil {
		return nil, fmt.Errorf("sntp: write to %s: %w", server, err)
	}

	resp := make([]byte, sntpPacketSize)
	n, err := conn.Read(resp)
	recvMono := monoNow()
	rtt := time.Since(sendTime).Seconds()
	if err != nil {
		return nil, fmt.Errorf("sntp: read from %s: %w", server, err)
	}
	if n < sntpPacketSize {
		return nil, fmt.Errorf("sntp: short response from %s (%d bytes)", server, n)
	}

	txSeconds := binary.BigEndian.Uint32(resp[40:44])
	txFraction := binary.BigEndian.Uint32(resp[44:48])
	txUnix := float64(txSeconds) - ntpEpochOffset + float64(txFraction)/4294967296.0

	driftMs := (txUnix - float64(time.Now().UnixNano())/1e9) * 1000.0

	return &SNTPResult{
		Server:  server,
		TxUnix:  txUnix,
		Mono:    recvMono,
		Offset:  txUnix - recvMono,
		RTT:     rtt,
		DriftMs: driftMs,
	}, nil
}
