package monplug

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"strings"
	"time"

	"github.com/miekg/dns"
)

func init() {
	AvailableChecks["check_rrsig_expiry"] = CheckEntry{"check_rrsig_expiry", func() CheckHandler { return NewCheckRRSIGExpiry() }}
}

// CheckRRSIGExpiry fetches a zone via AXFR (or reads it from a zone
// file) and verifies that no RRSIG record is close to its expiration.
// Thresholds are days left until the earliest signature expires, so
// warning must be larger than critical.
type CheckRRSIGExpiry struct {
	host     string
	zone     string
	tsig     string
	zonefile string

	warnDays float64
	critDays float64
}

func NewCheckRRSIGExpiry() *CheckRRSIGExpiry {
	return &CheckRRSIGExpiry{}
}

func (l *CheckRRSIGExpiry) Build() *CheckData {
	return &CheckData{
		name:        "check_rrsig_expiry",
		description: "Verifies expiration time on the RRSIG records in a zone.",
		args: map[string]CheckArgument{
			"host":     {value: &l.host, description: "Host to transfer the zone from"},
			"zone":     {value: &l.zone, description: "Zone to transfer"},
			"tsig":     {value: &l.tsig, description: "TSIG for the transfer, keyname:secret (hmac-sha256) or path to a bind key file"},
			"zonefile": {value: &l.zonefile, description: "Read the zone from this file instead of AXFR (.gz supported)"},
		},
		defaultWarning:  "8",
		defaultCritical: "6",
	}
}

func (l *CheckRRSIGExpiry) Check(ctx context.Context, _ *Agent, check *CheckData) (*CheckResult, error) {
	// warning and critical are minimum remaining days, warning hits first
	l.warnDays = check.warnThreshold.End
	l.critDays = check.critThreshold.End
	if l.warnDays <= l.critDays {
		return nil, fmt.Errorf("makes no sense with warning %g days <= critical %g days", l.warnDays, l.critDays)
	}
	if l.zonefile == "" {
		if l.host == "" {
			return nil, fmt.Errorf("no host specified")
		}
		if l.zone == "" {
			return nil, fmt.Errorf("no zone specified")
		}
	}

	var sigs []*dns.RRSIG
	var err error
	if l.zonefile != "" {
		sigs, err = l.readZonefile()
	} else {
		sigs, err = l.transferZone(ctx, check)
	}
	if err != nil {
		return nil, err
	}

	return l.evaluate(sigs), nil
}

func (l *CheckRRSIGExpiry) evaluate(sigs []*dns.RRSIG) *CheckResult {
	res := &CheckResult{}

	if len(sigs) < 1 {
		res.Finalize(CheckExitCritical, "no signatures found")

		return res
	}

	now := time.Now()
	minLeft := math.Inf(1)
	for _, sig := range sigs {
		expiration := time.Unix(int64(sig.Expiration), 0)
		left := expiration.Sub(now).Hours() / 24
		if left < minLeft {
			minLeft = left
		}
	}

	res.Metrics = append(res.Metrics,
		&CheckMetric{Name: "expires", Unit: "d", Value: minLeft},
		&CheckMetric{Name: "signatures", Value: float64(len(sigs)), Min: &Zero},
	)

	switch {
	case minLeft < 0:
		res.Finalize(CheckExitCritical, "signatures have expired")
	case minLeft <= l.critDays:
		res.Finalize(CheckExitCritical, fmt.Sprintf("some signatures will expire in %.1f days", minLeft))
	case minLeft < l.warnDays:
		res.Finalize(CheckExitWarning, fmt.Sprintf("some signatures will expire in %.1f days", minLeft))
	default:
		res.Finalize(CheckExitOK, fmt.Sprintf("minimum signature expires in %.1f days", minLeft))
	}

	return res
}

// transferZone runs an AXFR against the given host and collects the
// RRSIG records.
func (l *CheckRRSIGExpiry) transferZone(ctx context.Context, check *CheckData) ([]*dns.RRSIG, error) {
	zone := dns.Fqdn(l.zone)
	msg := &dns.Msg{}
	msg.SetAxfr(zone)

	transfer := &dns.Transfer{
		DialTimeout:  time.Duration(check.timeout * float64(time.Second)),
		ReadTimeout:  time.Duration(check.timeout * float64(time.Second)),
		WriteTimeout: time.Duration(check.timeout * float64(time.Second)),
	}
	if l.tsig != "" {
		keyName, algorithm, secret, err := parseTSIG(l.tsig)
		if err != nil {
			return nil, err
		}
		transfer.TsigSecret = map[string]string{keyName: secret}
		msg.SetTsig(keyName, algorithm, 300, time.Now().Unix())
	}

	host := l.host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "53")
	}

	envelopes, err := transfer.In(msg, host)
	if err != nil {
		return nil, fmt.Errorf("zone transfer of %s from %s failed: %s", zone, host, err.Error())
	}

	sigs := make([]*dns.RRSIG, 0)
	for envelope := range envelopes {
		if envelope.Error != nil {
			return nil, fmt.Errorf("zone transfer of %s from %s failed: %s", zone, host, envelope.Error.Error())
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		for _, rr := range envelope.RR {
			if sig, ok := rr.(*dns.RRSIG); ok {
				sigs = append(sigs, sig)
			}
		}
	}

	return sigs, nil
}

// parseTSIG accepts either an inline keyname:secret pair (hmac-sha256)
// or the path of a bind style key file:
//
//	key "transfer" {
//	    algorithm hmac-sha256;
//	    secret "c2VjcmV0...";
//	};
func parseTSIG(spec string) (keyName, algorithm, secret string, err error) {
	algorithm = dns.HmacSHA256

	if _, statErr := os.Stat(spec); statErr == nil {
		content, readErr := os.ReadFile(spec)
		if readErr != nil {
			return "", "", "", fmt.Errorf("cannot read tsig file %s: %s", spec, readErr.Error())
		}
		keyName, algorithm, secret = scanBindKeyFile(string(content), algorithm)
		if keyName == "" || secret == "" {
			return "", "", "", fmt.Errorf("no key name or secret found in tsig file %s", spec)
		}

		return dns.Fqdn(keyName), algorithm, secret, nil
	}

	keyName, secret, found := strings.Cut(spec, ":")
	if !found {
		return "", "", "", fmt.Errorf("tsig must be keyname:secret or an existing key file")
	}

	return dns.Fqdn(keyName), algorithm, secret, nil
}

func scanBindKeyFile(content, defaultAlgorithm string) (keyName, algorithm, secret string) {
	algorithm = defaultAlgorithm
	fields := strings.Fields(strings.NewReplacer(";", " ", "{", " ", "}", " ", `"`, " ").Replace(content))
	for i, field := range fields {
		if i+1 >= len(fields) {
			break
		}
		switch strings.ToLower(field) {
		case "key":
			keyName = fields[i+1]
		case "algorithm":
			algorithm = dns.Fqdn(strings.ToLower(fields[i+1]))
		case "secret":
			secret = fields[i+1]
		}
	}

	return keyName, algorithm, secret
}

// readZonefile parses a zone from disk, transparently uncompressing
// gzipped files.
func (l *CheckRRSIGExpiry) readZonefile() ([]*dns.RRSIG, error) {
	file, err := os.Open(l.zonefile)
	if err != nil {
		return nil, fmt.Errorf("cannot read zonefile: %s", err.Error())
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(l.zonefile, ".gz") {
		gz, gErr := gzip.NewReader(file)
		if gErr != nil {
			return nil, fmt.Errorf("cannot read zonefile: %s", gErr.Error())
		}
		defer gz.Close()
		reader = gz
	}

	sigs := make([]*dns.RRSIG, 0)
	parser := dns.NewZoneParser(reader, "", l.zonefile)
	for rr, ok := parser.Next(); ok; rr, ok = parser.Next() {
		if sig, isSig := rr.(*dns.RRSIG); isSig {
			sigs = append(sigs, sig)
		}
	}
	if err := parser.Err(); err != nil {
		return nil, fmt.Errorf("cannot parse zonefile: %s", err.Error())
	}

	return sigs, nil
}
