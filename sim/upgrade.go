// Implements the upgrade economy: a per-level point budget spent on server
// CPU and queue upgrades.

package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// QueueUpgradeCost is the price of one additional queue slot.
const QueueUpgradeCost = 1

// UpgradePoints tracks the level's upgrade budget.
// Assigned never exceeds Total.
type UpgradePoints struct {
	Total    int
	Assigned int
}

// Remaining returns the unspent budget.
func (p UpgradePoints) Remaining() int {
	return p.Total - p.Assigned
}

// CanSpend reports whether cost fits in the remaining budget.
func (p UpgradePoints) CanSpend(cost int) bool {
	return p.Assigned+cost <= p.Total
}

// Spend assigns cost points or returns ErrInsufficientPoints without changing state.
func (p *UpgradePoints) Spend(cost int) error {
	if !p.CanSpend(cost) {
		return fmt.Errorf("%w: cost %d, remaining %d", ErrInsufficientPoints, cost, p.Remaining())
	}
	p.Assigned += cost
	return nil
}

// Refund returns points to the budget, never dropping Assigned below zero.
func (p *UpgradePoints) Refund(points int) {
	p.Assigned -= points
	if p.Assigned < 0 {
		p.Assigned = 0
	}
}

// CPUUpgradeCost returns the price of raising processing power by one.
// The price equals the current power, with a floor of 1.
func CPUUpgradeCost(power int) int {
	return max(power, 1)
}

// UpgradeRefund returns the total points spent to reach the given power and queue size
// from the base configuration (power 1, queue 0).
func UpgradeRefund(power, queueSize int) int {
	return ((power-1)*power)/2 + queueSize
}

// PurchaseCPUUpgrade raises the server's processing power by one.
// The request in service keeps its current timer; the new power applies to
// the next request that starts service.
func (s *Simulator) PurchaseCPUUpgrade(id ServerID) error {
	srv, err := s.lookupServer(id)
	if err != nil {
		return err
	}
	cost := CPUUpgradeCost(srv.ProcessingPower)
	if err := s.points.Spend(cost); err != nil {
		logrus.Debugf("cpu upgrade refused for server %d: %v", id, err)
		return fmt.Errorf("cpu upgrade for server %d: %w", id, err)
	}
	srv.ProcessingPower++
	logrus.Debugf("server %d: power -> %d (cost %d, remaining %d)", id, srv.ProcessingPower, cost, s.points.Remaining())
	return nil
}

// PurchaseQueueUpgrade adds one queue slot to the server.
func (s *Simulator) PurchaseQueueUpgrade(id ServerID) error {
	srv, err := s.lookupServer(id)
	if err != nil {
		return err
	}
	if err := s.points.Spend(QueueUpgradeCost); err != nil {
		logrus.Debugf("queue upgrade refused for server %d: %v", id, err)
		return fmt.Errorf("queue upgrade for server %d: %w", id, err)
	}
	srv.QueueSize++
	logrus.Debugf("server %d: queue -> %d (remaining %d)", id, srv.QueueSize, s.points.Remaining())
	return nil
}

// ResetUpgrades returns the server to power 1 and queue 0, refunds what was
// spent on it and restarts its timer. Requests already queued beyond the new
// capacity stay queued until served.
func (s *Simulator) ResetUpgrades(id ServerID) error {
	srv, err := s.lookupServer(id)
	if err != nil {
		return err
	}
	s.points.Refund(UpgradeRefund(srv.ProcessingPower, srv.QueueSize))
	srv.ProcessingPower = 1
	srv.QueueSize = 0
	srv.ResetProgress()
	return nil
}

// Points returns the current upgrade budget.
func (s *Simulator) Points() UpgradePoints {
	return s.points
}
