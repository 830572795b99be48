// Package orders decides which buyer tab an order belongs to.
package orders

import (
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/metrics"
)

const statusPendingPayment = "pending_payment"

var readyToFlyStatuses = map[string]struct{}{
	"ready to fly": {},
	"readytofly":   {},
	"ready_to_fly": {},
}

var mishapLeafTrailStatuses = map[string]struct{}{
	"missing": {},
	"damaged": {},
}

type Classifier struct {
	policy  CutoffPolicy
	logger  *zap.Logger
	timeNow func() time.Time
}

type Option func(*Classifier)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger
	}
}

func WithCutoffPolicy(policy CutoffPolicy) Option {
	return func(c *Classifier) {
		c.policy = policy
	}
}

// WithClock replaces the wall clock used for cutoff checks.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) {
		c.timeNow = now
	}
}

func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		policy:  DefaultCutoffPolicy(),
		timeNow: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.policy.Location == nil {
		c.policy.Location = DefaultCutoffPolicy().Location
	}
	return c
}

func (c *Classifier) log() *zap.Logger {
	if c.logger != nil {
		return c.logger
	}
	return zap.L()
}

// Classify reports whether o belongs on tab. It never panics on malformed
// records; they simply match nothing.
func (c *Classifier) Classify(o Order, tab Tab) bool {
	if !o.Valid() {
		return false
	}
	t, ok := ParseTab(string(tab))
	if !ok {
		return false
	}

	switch t {
	case PayToBoard:
		return o.Status() == statusPendingPayment
	case ReadyToFly:
		return c.isReadyToFly(o)
	case PlantsAreHome:
		return isPlantsAreHome(o)
	case JourneyMishap:
		return isJourneyMishap(o)
	}
	return false
}

func (c *Classifier) isReadyToFly(o Order) bool {
	if _, ok := readyToFlyStatuses[o.Status()]; !ok {
		return false
	}
	if _, mishap := mishapLeafTrailStatuses[o.LeafTrailStatus()]; mishap {
		return false
	}
	return !c.PastCutoff(o)
}

// PastCutoff reports whether boarding has closed for o. Orders without a
// usable flight date never expire.
func (c *Classifier) PastCutoff(o Order) bool {
	flight, ok := o.FlightDate()
	if !ok {
		return false
	}
	return c.policy.PastCutoff(flight, c.timeNow())
}

func isPlantsAreHome(o Order) bool {
	if _, ok := o.TrackingNumber(); !ok {
		return false
	}
	_, hasDate := o.DeliveryDate()
	_, hasTime := o.DeliveryTime()
	return hasDate && hasTime
}

func isJourneyMishap(o Order) bool {
	if _, mishap := mishapLeafTrailStatuses[o.LeafTrailStatus()]; mishap {
		return true
	}
	return o.CreditRequestCount() > 0
}

// FilterByTab returns the orders on tab, in input order, optionally limited to
// one buyer. An unrecognized tab is logged and the input is returned as is.
func (c *Classifier) FilterByTab(list []Order, tab Tab, owner string) []Order {
	t, ok := ParseTab(string(tab))
	if !ok {
		metrics.UnknownTabTotal.Inc()
		c.log().Warn("unknown order tab, returning unfiltered orders",
			zap.String("tab", string(tab)),
			zap.Int("orders", len(list)))
		return list
	}

	result := make([]Order, 0, len(list))
	for _, o := range list {
		if !c.Classify(o, t) {
			continue
		}
		if owner != "" && !ownedBy(o, owner) {
			continue
		}
		result = append(result, o)
	}
	return result
}

// FilterByOwner keeps the orders whose resolved buyer is owner. An empty owner
// keeps everything.
func FilterByOwner(list []Order, owner string) []Order {
	if owner == "" {
		return list
	}
	result := make([]Order, 0, len(list))
	for _, o := range list {
		if ownedBy(o, owner) {
			result = append(result, o)
		}
	}
	return result
}

// CountByTab counts orders per known tab in one pass.
func (c *Classifier) CountByTab(list []Order, owner string) map[Tab]int {
	counts := make(map[Tab]int, len(AllTabs))
	for _, t := range AllTabs {
		counts[t] = 0
	}
	for _, o := range list {
		if owner != "" && !ownedBy(o, owner) {
			continue
		}
		for _, t := range AllTabs {
			if c.Classify(o, t) {
				counts[t]++
			}
		}
	}
	return counts
}

func ownedBy(o Order, owner string) bool {
	id, ok := o.BuyerID()
	return ok && id == owner
}

var defaultClassifier = NewClassifier()

// Classify uses a classifier on the system clock and the default cutoff.
func Classify(o Order, tab Tab) bool {
	return defaultClassifier.Classify(o, tab)
}

func FilterByTab(list []Order, tab Tab, owner string) []Order {
	return defaultClassifier.FilterByTab(list, tab, owner)
}
