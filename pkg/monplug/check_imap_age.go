package monplug

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

func init() {
	AvailableChecks["check_imap_age"] = CheckEntry{"check_imap_age", func() CheckHandler { return NewCheckIMAPAge() }}
}

// CheckIMAPAge connects to an IMAP server and checks the age of the
// oldest message in a folder. Useful to detect a consumer that stopped
// polling its mailbox: mail piles up on the server.
type CheckIMAPAge struct {
	host        string
	port        int64
	ssl         bool
	username    string
	password    string
	credentials string
	folder      string
}

func NewCheckIMAPAge() *CheckIMAPAge {
	return &CheckIMAPAge{folder: "INBOX"}
}

func (l *CheckIMAPAge) Build() *CheckData {
	return &CheckData{
		name:        "check_imap_age",
		description: "Checks the age of the oldest message in an IMAP folder.",
		args: map[string]CheckArgument{
			"host":        {value: &l.host, description: "IMAP server"},
			"port":        {value: &l.port, description: "Port on the IMAP server (default 143, with ssl 993)"},
			"ssl":         {value: &l.ssl, description: "Use IMAPS"},
			"user":        {value: &l.username, description: "IMAP account username"},
			"password":    {value: &l.password, description: "IMAP account password"},
			"credentials": {value: &l.credentials, description: "File with username and password entries"},
			"folder":      {value: &l.folder, description: "IMAP folder to check (default INBOX)"},
		},
		timeout: 30,
	}
}

func (l *CheckIMAPAge) Check(_ context.Context, _ *Agent, check *CheckData) (*CheckResult, error) {
	if l.host == "" {
		return nil, fmt.Errorf("host argument is required")
	}
	if check.warnThreshold == nil || check.critThreshold == nil {
		return nil, fmt.Errorf("warn and crit arguments are required (seconds)")
	}
	if l.credentials != "" {
		if err := l.loadCredentials(); err != nil {
			return nil, err
		}
	}

	count, oldest, err := l.fetchOldest(check)
	if err != nil {
		return nil, err
	}

	res := &CheckResult{
		Metrics: []*CheckMetric{
			{Name: "messages", Value: float64(count), Min: &Zero},
		},
	}

	msg := fmt.Sprintf("IMAP account '%s' folder '%s'", l.username, l.folder)
	if count == 0 {
		res.Finalize(CheckExitOK, fmt.Sprintf("%s: no messages found", msg))

		return res, nil
	}

	age := time.Since(oldest).Seconds()
	res.Metrics = append(res.Metrics, &CheckMetric{
		Name: "oldest", Unit: "s", Value: age,
		Warning: check.warnThreshold, Critical: check.critThreshold, Min: &Zero,
	})

	msg = fmt.Sprintf("%s: oldest of %d messages is %.0f seconds", msg, count, age)
	switch state := CheckWarnCrit(age, check.warnThreshold, check.critThreshold); state {
	case CheckExitCritical:
		res.Finalize(state, fmt.Sprintf("%s > critical limit %s", msg, check.critThreshold.String()))
	case CheckExitWarning:
		res.Finalize(state, fmt.Sprintf("%s > warning limit %s", msg, check.warnThreshold.String()))
	default:
		res.Finalize(CheckExitOK, msg)
	}

	return res, nil
}

// fetchOldest returns the message count and the server side receive time
// (INTERNALDATE) of the oldest message in the folder.
func (l *CheckIMAPAge) fetchOldest(check *CheckData) (count int, oldest time.Time, err error) {
	conn, err := l.dial(check)
	if err != nil {
		return 0, oldest, err
	}
	defer func() { LogDebug(conn.Logout()) }()

	if err := conn.Login(l.username, l.password); err != nil {
		return 0, oldest, fmt.Errorf("authentication failure with username '%s': %s", l.username, err.Error())
	}

	if _, err := conn.Select(l.folder, true); err != nil {
		return 0, oldest, fmt.Errorf("cannot select folder %s: %s", l.folder, err.Error())
	}

	uids, err := conn.UidSearch(imap.NewSearchCriteria())
	if err != nil {
		return 0, oldest, fmt.Errorf("could not search for messages: %s", err.Error())
	}
	if len(uids) == 0 {
		return 0, oldest, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- conn.UidFetch(seqSet, []imap.FetchItem{imap.FetchInternalDate}, messages)
	}()

	for msg := range messages {
		if oldest.IsZero() || msg.InternalDate.Before(oldest) {
			oldest = msg.InternalDate
		}
	}
	if err := <-done; err != nil {
		return 0, oldest, fmt.Errorf("fetch failed: %s", err.Error())
	}

	return len(uids), oldest, nil
}

func (l *CheckIMAPAge) dial(check *CheckData) (*client.Client, error) {
	port := l.port
	if port == 0 {
		port = 143
		if l.ssl {
			port = 993
		}
	}
	addr := net.JoinHostPort(l.host, strconv.FormatInt(port, 10))

	var conn *client.Client
	var err error
	if l.ssl {
		conn, err = client.DialTLS(addr, nil)
	} else {
		conn, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("could not connect to IMAP server %s: %s", addr, err.Error())
	}
	conn.Timeout = time.Duration(check.timeout * float64(time.Second))

	return conn, nil
}

// loadCredentials reads username/password from an ini style file.
func (l *CheckIMAPAge) loadCredentials() error {
	fileHandle, err := os.Open(l.credentials)
	if err != nil {
		return fmt.Errorf("cannot open credentials file %s: %s", l.credentials, err.Error())
	}
	defer fileHandle.Close()

	scanner := bufio.NewScanner(fileHandle)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(strings.ToLower(key)) {
		case "username":
			l.username = strings.TrimSpace(value)
		case "password":
			l.password = strings.TrimSpace(value)
		}
	}

	return scanner.Err()
}
