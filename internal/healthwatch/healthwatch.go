// Package healthwatch wraps a SWIM-based cluster membership monitor
// (github.com/hashicorp/memberlist) as a purely advisory component:
// spec.md's correctness properties never depend on it. It exists to
// surface neighbor liveness in logs and metrics, nothing more.
package healthwatch

import (
	"fmt"
	"time"

	"github.com/hashicorp/memberlist"

	"github.com/heitortanoue/serverherd/internal/logging"
	"github.com/heitortanoue/serverherd/internal/metrics"
)

const (
	joinedSuffix = "joined"
	leftSuffix   = "left"
	updateSuffix = "updated"
)

// events implements memberlist.EventDelegate, logging membership changes
// and incrementing a counter per event kind.
type events struct {
	ownName string
	log     *logging.Logger
	metrics *metrics.Registry
}

func (e *events) NotifyJoin(n *memberlist.Node) {
	if n.Name == e.ownName {
		return
	}
	if e.log != nil {
		e.log.Infof("health: member %s (%s) joined", n.Name, n.Address())
	}
	e.metrics.Incr("health.member." + joinedSuffix)
}

func (e *events) NotifyLeave(n *memberlist.Node) {
	if e.log != nil {
		e.log.Warnf("health: member %s left", n.Name)
	}
	e.metrics.Incr("health.member." + leftSuffix)
}

func (e *events) NotifyUpdate(n *memberlist.Node) {
	if e.log != nil {
		e.log.Infof("health: member %s updated", n.Name)
	}
	e.metrics.Incr("health.member." + updateSuffix)
}

// Monitor owns one memberlist instance for the local herd member.
type Monitor struct {
	ml      *memberlist.Memberlist
	ownName string
}

// Config configures one Monitor instance.
type Config struct {
	OwnName  string
	BindAddr string
	BindPort int
	Seeds    []string
}

// Start creates and joins the SWIM cluster. A failure to reach any seed
// is logged, not fatal — health monitoring degrading to "no known
// peers" must never take down the herd member it's attached to.
func Start(cfg Config, log *logging.Logger, reg *metrics.Registry) (*Monitor, error) {
	mlCfg := memberlist.DefaultLANConfig()
	mlCfg.Name = cfg.OwnName
	if cfg.BindAddr != "" {
		mlCfg.BindAddr = cfg.BindAddr
	}
	mlCfg.BindPort = cfg.BindPort
	mlCfg.AdvertisePort = cfg.BindPort
	mlCfg.Events = &events{ownName: cfg.OwnName, log: log, metrics: reg}
	mlCfg.LogOutput = &logWriter{log: log}

	ml, err := memberlist.Create(mlCfg)
	if err != nil {
		return nil, fmt.Errorf("healthwatch: create memberlist: %w", err)
	}

	m := &Monitor{ml: ml, ownName: cfg.OwnName}

	if len(cfg.Seeds) > 0 {
		if n, err := ml.Join(cfg.Seeds); err != nil {
			if log != nil {
				log.Warnf("health: failed to join any seed out of %v: %v", cfg.Seeds, err)
			}
		} else if log != nil {
			log.Infof("health: joined cluster via %d seed(s)", n)
		}
	}

	return m, nil
}

// LiveMembers returns the names of every member visible to the local
// node, including itself.
func (m *Monitor) LiveMembers() []string {
	members := m.ml.Members()
	names := make([]string, 0, len(members))
	for _, n := range members {
		names = append(names, n.Name)
	}
	return names
}

// Shutdown leaves the cluster and releases the monitor's resources.
// Best-effort: called during the herd member's own shutdown sequence,
// after which no one is listening for this node's liveness anymore.
func (m *Monitor) Shutdown() error {
	_ = m.ml.Leave(healthLeaveTimeout)
	return m.ml.Shutdown()
}

const healthLeaveTimeout = 2 * time.Second

// logWriter adapts memberlist's io.Writer-based logging (it writes
// complete lines prefixed with its own level) onto our Logger.
type logWriter struct {
	log *logging.Logger
}

func (w *logWriter) Write(p []byte) (int, error) {
	if w.log != nil {
		w.log.Infof("memberlist: %s", string(p))
	}
	return len(p), nil
}
