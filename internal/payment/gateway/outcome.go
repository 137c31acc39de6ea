package gateway

import (
	"math/rand"

	pb "github.com/fjod/foodcart/internal/payment/paymentrpc"
)

var refusals = []pb.PaymentRefusal{
	pb.RefusalInsufficientFunds,
	pb.RefusalCardDeclined,
	pb.RefusalCardExpired,
	pb.RefusalFraudSuspected,
	pb.RefusalLimitExceeded,
}

// RandomOutcome approves SuccessRate percent of captures.
type RandomOutcome struct {
	SuccessRate int
}

func (r RandomOutcome) Decide() Decision {
	return decide(rand.Intn(100), r.SuccessRate)
}

func decide(roll, successRate int) Decision {
	if roll < successRate {
		return Decision{Approved: true}
	}
	reason := roll - successRate
	if reason >= len(refusals) {
		return Decision{Refusal: string(pb.RefusalUnknown), Reason: "unknown reason"}
	}
	return Decision{Refusal: string(refusals[reason])}
}

// FixedOutcome always returns the same decision.
type FixedOutcome Decision

func (f FixedOutcome) Decide() Decision {
	return Decision(f)
}
