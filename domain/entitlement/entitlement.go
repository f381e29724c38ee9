// Package entitlement provides the pure decision function that turns
// subscription and usage facts into a verdict: may this user create a new
// journal, may they view existing ones, and why.
package entitlement

import (
	"time"

	"github.com/quietpage/reflectd/domain/billing"
)

// FreeTierLimit is the number of saved journals a user without a subscription
// may keep.
const FreeTierLimit = 3

// Reason codes carried on every verdict so the caller can choose the right
// call-to-action (upgrade prompt vs. payment fix vs. trial-over message).
const (
	ReasonFreeTier           = "free_tier"
	ReasonFreeTierLimit      = "free_tier_limit_reached"
	ReasonGrantedActive      = "granted_active"
	ReasonGrantedTrialing    = "granted_trialing"
	ReasonGrantedTrialCancel = "granted_trialing_will_cancel"
	ReasonTrialExpired       = "trial_expired"
	reasonSubscriptionPrefix = "subscription_"
)

// Verdict is the outcome of an entitlement evaluation. It is ephemeral:
// recomputed on every request and never cached beyond the single call.
type Verdict struct {
	Entitled          bool // legacy alias of CanCreateJournals
	CanCreateJournals bool
	CanViewJournals   bool
	Reason            string
	PlanName          string
	JournalsRemaining *int // free-tier branch only, nil for subscribers
	TotalJournals     int

	// Subscription context, zero-valued on the free-tier branch.
	Status            billing.SubscriptionStatus
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
}

// Evaluate computes the verdict for a user. snap is nil when no subscription
// record exists anywhere (cache and provider both empty); journalCount is the
// user's saved-journal count. Viewing previously saved journals is never
// paywalled: CanViewJournals is true on every verdict this function returns.
// This is a PURE function.
func Evaluate(snap *billing.Snapshot, journalCount int, now time.Time) Verdict {
	if snap == nil {
		return freeTierVerdict(journalCount)
	}

	v := Verdict{
		CanViewJournals:   true,
		PlanName:          snap.Tier,
		TotalJournals:     journalCount,
		Status:            snap.Status,
		CurrentPeriodEnd:  snap.CurrentPeriodEnd,
		CancelAtPeriodEnd: snap.CancelAtPeriodEnd,
	}

	switch snap.Status {
	case billing.StatusActive:
		v.CanCreateJournals = true
		v.Reason = ReasonGrantedActive

	case billing.StatusTrialing:
		// The cancel-at-period-end flag alone must not deny access while the
		// trial window is still open.
		if snap.CurrentPeriodEnd != nil && snap.CurrentPeriodEnd.After(now) {
			v.CanCreateJournals = true
			if snap.CancelAtPeriodEnd {
				v.Reason = ReasonGrantedTrialCancel
			} else {
				v.Reason = ReasonGrantedTrialing
			}
		} else {
			v.Reason = ReasonTrialExpired
		}

	default:
		// canceled, past_due, unpaid, incomplete, incomplete_expired, and any
		// status the provider adds later: deny with a status-derived reason.
		v.Reason = reasonSubscriptionPrefix + string(snap.Status)
	}

	v.Entitled = v.CanCreateJournals
	return v
}

func freeTierVerdict(journalCount int) Verdict {
	remaining := FreeTierLimit - journalCount
	if remaining < 0 {
		remaining = 0
	}
	v := Verdict{
		CanViewJournals:   true,
		PlanName:          billing.TierFree,
		JournalsRemaining: &remaining,
		TotalJournals:     journalCount,
	}
	if journalCount < FreeTierLimit {
		v.CanCreateJournals = true
		v.Reason = ReasonFreeTier
	} else {
		v.Reason = ReasonFreeTierLimit
	}
	v.Entitled = v.CanCreateJournals
	return v
}
