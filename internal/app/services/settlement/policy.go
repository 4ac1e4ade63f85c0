package settlement

import (
	"fmt"

	"github.com/R3E-Network/rental_settlement/internal/app/domain/settlement"
	"github.com/R3E-Network/rental_settlement/internal/ledger"
)

// Policy decides what a step failure does to the run.
type Policy string

const (
	// Required failures abort the run, except for the ledger step where the
	// failure is recorded in the final status instead.
	Required Policy = "REQUIRED"
	// BestEffort failures are logged and the run continues.
	BestEffort Policy = "BEST_EFFORT"
)

// Step names one stage of a settlement run.
type Step string

const (
	StepDirectoryLookup Step = "directory_lookup"
	StepPersistInitial  Step = "persist_initial"
	StepLedger          Step = "ledger"
	StepPersistFinal    Step = "persist_final"
	StepPublish         Step = "publish"
)

// StepPolicy tags a step with its failure policy.
type StepPolicy struct {
	Step   Step
	Policy Policy
	Async  bool
}

// Plan is the ordered step list of one action kind.
type Plan struct {
	Kind  settlement.Kind
	Steps []StepPolicy
}

// AgreementPlan treats the ledger as advisory: the agreement exists locally
// whether or not the ledger confirms it.
var AgreementPlan = Plan{
	Kind: settlement.KindAgreementCreation,
	Steps: []StepPolicy{
		{Step: StepDirectoryLookup, Policy: BestEffort},
		{Step: StepPersistInitial, Policy: Required},
		{Step: StepLedger, Policy: BestEffort},
		{Step: StepPersistFinal, Policy: Required},
		{Step: StepPublish, Policy: BestEffort, Async: true},
	},
}

// PaymentPlan treats the ledger as authoritative: an unconfirmed payment is
// recorded FAILED. There is no initial write for payments.
var PaymentPlan = Plan{
	Kind: settlement.KindPaymentProcessing,
	Steps: []StepPolicy{
		{Step: StepDirectoryLookup, Policy: BestEffort},
		{Step: StepLedger, Policy: Required},
		{Step: StepPersistFinal, Policy: Required},
		{Step: StepPublish, Policy: BestEffort, Async: true},
	},
}

// PlanFor returns the declared plan of kind.
func PlanFor(kind settlement.Kind) (Plan, error) {
	switch kind {
	case settlement.KindAgreementCreation:
		return AgreementPlan, nil
	case settlement.KindPaymentProcessing:
		return PaymentPlan, nil
	}
	return Plan{}, fmt.Errorf("no settlement plan for kind %q", kind)
}

// Policy returns the policy of step. It panics if the plan does not contain
// step, which is a programming error in the plan tables.
func (p Plan) Policy(step Step) Policy {
	for _, s := range p.Steps {
		if s.Step == step {
			return s.Policy
		}
	}
	panic(fmt.Sprintf("settlement plan %s has no step %s", p.Kind, step))
}

// Has reports whether the plan contains step.
func (p Plan) Has(step Step) bool {
	for _, s := range p.Steps {
		if s.Step == step {
			return true
		}
	}
	return false
}

// Resolution is the final status and ledger reference of a record.
type Resolution struct {
	Status    settlement.Status
	LedgerRef string
}

// Resolve maps the ledger step's policy and result to the record's final
// status. A confirmation always completes the record with its hash. A
// rejection completes with no reference under BestEffort and fails with the
// FAILED sentinel under Required.
func Resolve(policy Policy, result ledger.Result) Resolution {
	switch r := result.(type) {
	case ledger.Confirmed:
		return Resolution{Status: settlement.StatusCompleted, LedgerRef: r.TransactionHash}
	case ledger.Rejected:
		if policy == BestEffort {
			return Resolution{Status: settlement.StatusCompleted}
		}
		return Resolution{Status: settlement.StatusFailed, LedgerRef: settlement.LedgerRefFailed}
	}
	if policy == BestEffort {
		return Resolution{Status: settlement.StatusCompleted}
	}
	return Resolution{Status: settlement.StatusFailed, LedgerRef: settlement.LedgerRefFailed}
}

// Outcome is the typed result of one executed step.
type Outcome struct {
	Step   Step
	Policy Policy
	Err    error
}

// Failed reports whether the step failed.
func (o Outcome) Failed() bool { return o.Err != nil }

// Fatal reports whether the failure must abort the run.
func (o Outcome) Fatal() bool { return o.Err != nil && o.Policy == Required && o.Step != StepLedger }
