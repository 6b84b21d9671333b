package monplug

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/ntp"

	"github.com/croxen/monplug/pkg/threshold"
)

func init() {
	AvailableChecks["check_ntp_peers"] = CheckEntry{"check_ntp_peers", func() CheckHandler { return NewCheckNTPPeers() }}
}

// NTPPeer is one row of the ntpq -p peer table.
//
// tally is one of
//
//	+ symmetric active
//	- symmetric passive
//	a remote server polled in client mode
//	^ server is broadcasting to this address
//	~ remote peer is sending broadcasts
//	* the peer the server is currently synchronizing to
type NTPPeer struct {
	Tally   string
	Remote  string
	RefID   string
	Stratum int64
	Type    string
	When    string
	Poll    int64
	Reach   int64
	Delay   float64
	Offset  float64
	Jitter  float64
}

// Up reports whether the peer is reachable, stratum 16 is the
// conventional "unsynchronized" marker.
func (p *NTPPeer) Up() bool {
	return p.Stratum != 16
}

// Selected reports whether this is the peer the daemon synchronizes to.
func (p *NTPPeer) Selected() bool {
	return p.Tally == "*"
}

// CheckNTPPeers verifies the health of the local NTP daemon: one peer
// must be selected, all peers must be up and offset/jitter must stay
// below the given limits. With server=... given, the servers are queried
// directly instead of parsing the local ntpq peer table.
type CheckNTPPeers struct {
	servers   []string
	maxOffset string
	maxJitter string

	offsetPair *threshold.Range
	jitterPair *threshold.Range
}

func NewCheckNTPPeers() *CheckNTPPeers {
	return &CheckNTPPeers{
		maxOffset: "250:500",
		maxJitter: "250:500",
	}
}

func (l *CheckNTPPeers) Build() *CheckData {
	return &CheckData{
		name:        "check_ntp_peers",
		description: "Checks status and offset/jitter of the NTP peers.",
		args: map[string]CheckArgument{
			"server":     {value: &l.servers, description: "Query this NTP server directly instead of the local ntpq peer table (multiple)"},
			"max_offset": {value: &l.maxOffset, description: "Max offset in milliseconds as warning:critical pair"},
			"max_jitter": {value: &l.maxJitter, description: "Max jitter in milliseconds as warning:critical pair"},
		},
	}
}

func (l *CheckNTPPeers) Check(ctx context.Context, snc *Agent, check *CheckData) (*CheckResult, error) {
	offsetPair, err := threshold.Parse(l.maxOffset)
	if err != nil {
		return nil, fmt.Errorf("max_offset: %s", err.Error())
	}
	jitterPair, err := threshold.Parse(l.maxJitter)
	if err != nil {
		return nil, fmt.Errorf("max_jitter: %s", err.Error())
	}
	l.offsetPair = offsetPair
	l.jitterPair = jitterPair

	var peers []*NTPPeer
	if len(l.servers) > 0 {
		peers, err = l.queryServers(check)
	} else {
		peers, err = l.queryNTPQ(ctx, snc)
	}
	if err != nil {
		return nil, err
	}
	if len(peers) == 0 {
		return nil, fmt.Errorf("no NTP peers found")
	}

	return l.evaluate(peers), nil
}

func (l *CheckNTPPeers) evaluate(peers []*NTPPeer) *CheckResult {
	res := &CheckResult{}

	var selected *NTPPeer
	countUp := 0
	for _, peer := range peers {
		if peer.Selected() {
			selected = peer
		}

		state := CheckExitOK
		detail := fmt.Sprintf("Peer %s", peer.Remote)
		if !peer.Up() {
			res.Record(CheckExitOK, detail+", peer is DOWN")

			continue
		}
		countUp++

		detail += fmt.Sprintf(", offset %.3f ms, jitter %.3f ms", peer.Offset, peer.Jitter)
		if offsetState := CheckWarnCritPair(math.Abs(peer.Offset), l.offsetPair); offsetState != CheckExitOK {
			state = maxState(state, offsetState)
			detail += fmt.Sprintf(", offset %s over maximum", StateString(offsetState))
		} else {
			detail += ", offset OK"
		}
		if jitterState := CheckWarnCritPair(peer.Jitter, l.jitterPair); jitterState != CheckExitOK {
			state = maxState(state, jitterState)
			detail += fmt.Sprintf(", jitter %s over maximum", StateString(jitterState))
		} else {
			detail += ", jitter OK"
		}

		res.Record(state, detail)
	}

	if selected != nil {
		res.Metrics = append(res.Metrics,
			&CheckMetric{Name: "offset", Unit: "ms", Value: selected.Offset},
			&CheckMetric{Name: "jitter", Unit: "ms", Value: selected.Jitter, Min: &Zero},
		)
	}

	switch {
	case selected == nil:
		res.EscalateStatus(CheckExitCritical)
		res.Finalize(CheckExitCritical, "No NTP peer is selected")
	case countUp == 0:
		res.EscalateStatus(CheckExitCritical)
		res.Finalize(CheckExitCritical, "All NTP peers down")
	case countUp < len(peers):
		res.EscalateStatus(CheckExitWarning)
		res.Finalize(CheckExitWarning, fmt.Sprintf("Of total %d NTP peers %d are down", len(peers), len(peers)-countUp))
	default:
		res.Finalize(CheckExitOK, fmt.Sprintf("Peer '%s' is selected, offset %.3f ms, jitter %.3f ms",
			selected.Remote, selected.Offset, selected.Jitter))
	}

	return res
}

// queryNTPQ parses the local ntpq -p peer table.
func (l *CheckNTPPeers) queryNTPQ(ctx context.Context, snc *Agent) ([]*NTPPeer, error) {
	output, stderr, exitCode, err := snc.execCommand(ctx, "ntpq -p", DefaultCmdTimeout)
	if err != nil {
		return nil, fmt.Errorf("ntpq failed: %s", err.Error())
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("ntpq failed: %s\n%s", output, stderr)
	}

	return parseNTPQPeers(output)
}

func parseNTPQPeers(output string) ([]*NTPPeer, error) {
	peers := make([]*NTPPeer, 0)
	skipLines := true
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "=") {
			// header separator, peers follow
			skipLines = false

			continue
		}
		if skipLines {
			continue
		}
		peer, err := parseNTPQPeerLine(line)
		if err != nil {
			return nil, err
		}
		peers = append(peers, peer)
	}

	return peers, nil
}

func parseNTPQPeerLine(line string) (*NTPPeer, error) {
	tally := line[0:1]
	cols := strings.Fields(line[1:])
	if len(cols) < 10 {
		return nil, fmt.Errorf("unknown peer format in line: %s", line)
	}

	stratum, err := strconv.ParseInt(cols[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cannot parse stratum in line: %s", line)
	}
	poll, _ := strconv.ParseInt(cols[5], 10, 64)
	reach, err := strconv.ParseInt(cols[6], 8, 64) // octal
	if err != nil {
		return nil, fmt.Errorf("cannot parse reach in line: %s", line)
	}
	delay, _ := strconv.ParseFloat(cols[7], 64)
	offset, err := strconv.ParseFloat(cols[8], 64)
	if err != nil {
		return nil, fmt.Errorf("cannot parse offset in line: %s", line)
	}
	jitter, err := strconv.ParseFloat(cols[9], 64)
	if err != nil {
		return nil, fmt.Errorf("cannot parse jitter in line: %s", line)
	}

	return &NTPPeer{
		Tally:   tally,
		Remote:  cols[0],
		RefID:   cols[1],
		Stratum: stratum,
		Type:    cols[3],
		When:    cols[4],
		Poll:    poll,
		Reach:   reach,
		Delay:   delay,
		Offset:  offset,
		Jitter:  jitter,
	}, nil
}

// queryServers asks each given server directly. The first answering
// server counts as selected, offsets come from the NTP response itself.
func (l *CheckNTPPeers) queryServers(check *CheckData) ([]*NTPPeer, error) {
	options := ntp.QueryOptions{Timeout: time.Duration(check.timeout * float64(time.Second))}

	peers := make([]*NTPPeer, 0, len(l.servers))
	var lastErr error
	for _, server := range l.servers {
		response, err := ntp.QueryWithOptions(server, options)
		if err != nil {
			lastErr = err
			log.Debugf("ntp query failed %s: %s", server, err.Error())
			peers = append(peers, &NTPPeer{Remote: server, Stratum: 16})

			continue
		}

		peer := &NTPPeer{
			Remote:  server,
			Stratum: int64(response.Stratum),
			Offset:  float64(response.ClockOffset.Nanoseconds()) / 1e6,
			Jitter:  float64(response.RootDispersion.Nanoseconds()) / 1e6,
		}
		if len(peers) == 0 || allDown(peers) {
			peer.Tally = "*"
		}
		peers = append(peers, peer)
	}

	if allDown(peers) && lastErr != nil {
		return nil, fmt.Errorf("all ntp queries failed, last error: %s", lastErr.Error())
	}

	return peers, nil
}

func allDown(peers []*NTPPeer) bool {
	for _, peer := range peers {
		if peer.Up() {
			return false
		}
	}

	return true
}

func maxState(a, b int64) int64 {
	if b > a {
		return b
	}

	return a
}
