package monplug

import (
	"context"
	"fmt"
	"time"
)

func init() {
	AvailableChecks["check_dhcp_scopes"] = CheckEntry{"check_dhcp_scopes", func() CheckHandler { return NewCheckDHCPScopes() }}
}

// CheckDHCPScopes checks the number of free addresses in the BECS DHCP
// scopes. With icinga=true it additionally feeds each scope as a
// passive service result into the icinga command file and keeps the
// generated scope service config in sync.
type CheckDHCPScopes struct {
	freeWarning  int64
	freeCritical int64
	icinga       bool
}

func NewCheckDHCPScopes() *CheckDHCPScopes {
	return &CheckDHCPScopes{
		freeWarning:  20,
		freeCritical: 5,
	}
}

func (l *CheckDHCPScopes) Build() *CheckData {
	return &CheckData{
		name:        "check_dhcp_scopes",
		description: "Checks the number of free addresses in the BECS DHCP scopes.",
		args: map[string]CheckArgument{
			"free_warning":  {value: &l.freeWarning, description: "WARNING when a scope has fewer free addresses (default 20)"},
			"free_critical": {value: &l.freeCritical, description: "CRITICAL when a scope has fewer free addresses (default 5)"},
			"icinga":        {value: &l.icinga, description: "Write the icinga scope config and send passive check results"},
		},
	}
}

func (l *CheckDHCPScopes) Check(ctx context.Context, snc *Agent, check *CheckData) (*CheckResult, error) {
	conf := snc.Config()
	if conf.BECS.EAPI == "" {
		return nil, fmt.Errorf("no becs eapi endpoint configured")
	}

	becs := NewBECSClient(&conf.BECS, check.timeout)
	if err := becs.Login(ctx); err != nil {
		return nil, err
	}
	defer becs.Logout(ctx)

	scopes, err := becs.DHCPScopeReport(ctx, conf.BECS.ScopeOID)
	if err != nil {
		return nil, err
	}
	if len(scopes) == 0 {
		return nil, fmt.Errorf("becs returned no dhcp scopes below oid %d", conf.BECS.ScopeOID)
	}

	res := l.evaluate(scopes)

	if l.icinga {
		if err := l.feedIcinga(ctx, snc, &conf.Icinga, scopes); err != nil {
			return nil, err
		}
	}

	return res, nil
}

func (l *CheckDHCPScopes) scopeState(scope *DHCPScope) int64 {
	switch {
	case scope.Free < l.freeCritical:
		return CheckExitCritical
	case scope.Free < l.freeWarning:
		return CheckExitWarning
	}

	return CheckExitOK
}

func (l *CheckDHCPScopes) evaluate(scopes []DHCPScope) *CheckResult {
	res := &CheckResult{}

	var totalFree, totalAssigned int64
	worstCount := 0
	for i := range scopes {
		scope := &scopes[i]
		totalFree += scope.Free
		totalAssigned += scope.Assigned

		state := l.scopeState(scope)
		if state != CheckExitOK {
			worstCount++
		}
		res.Record(state, fmt.Sprintf("Scope %s: %d free, %d assigned (%s)",
			scope.Name, scope.Free, scope.Assigned, StateString(state)))
	}

	res.Metrics = append(res.Metrics,
		&CheckMetric{Name: "free", Value: float64(totalFree), Min: &Zero},
		&CheckMetric{Name: "assigned", Value: float64(totalAssigned), Min: &Zero},
	)

	if worstCount > 0 {
		res.Finalize(res.State, fmt.Sprintf("%d of %d DHCP scopes low on free addresses", worstCount, len(scopes)))
	} else {
		res.Finalize(CheckExitOK, fmt.Sprintf("%d DHCP scopes, %d free addresses total", len(scopes), totalFree))
	}

	return res
}

// feedIcinga sends each scope as a passive service result and rewrites
// the generated scope service config, reloading icinga only when the
// config actually changed.
func (l *CheckDHCPScopes) feedIcinga(ctx context.Context, snc *Agent, conf *IcingaConfig, scopes []DHCPScope) error {
	now := time.Now()
	results := make([]*PassiveResult, 0, len(scopes))
	serviceNames := make([]string, 0, len(scopes))
	for i := range scopes {
		scope := &scopes[i]
		name := fmt.Sprintf("DHCP Scope %s", scope.Name)
		serviceNames = append(serviceNames, name)
		results = append(results, &PassiveResult{
			Timestamp: now,
			HostName:  conf.HostName,
			Service:   name,
			State:     l.scopeState(scope),
			Output:    fmt.Sprintf("%d free addresses, %d assigned addresses", scope.Free, scope.Assigned),
		})
	}

	content := BuildScopeServiceConfig(conf, serviceNames)
	changed, err := InstallScopeServiceConfig(conf.ScopeConfFile, content)
	if err != nil {
		return err
	}
	if changed {
		log.Infof("scope config %s changed, reloading icinga", conf.ScopeConfFile)
		output, stderr, exitCode, err := snc.execCommand(ctx, conf.ReloadCommand, DefaultCmdTimeout)
		if err != nil {
			return fmt.Errorf("icinga reload failed: %s", err.Error())
		}
		if exitCode != 0 {
			return fmt.Errorf("icinga reload failed: %s\n%s", output, stderr)
		}
	}

	return WritePassiveResults(conf.CommandFile, results)
}
