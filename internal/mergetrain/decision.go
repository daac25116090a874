package mergetrain

import (
	"fmt"

	"github.com/osbuild/fedora-bot/internal/pagureclt"
)

// Decision is the merge eligibility of a single pull request.
type Decision int

const (
	// NotReady means not all expected CI flags have been reported yet,
	// the pull request is re-evaluated on the next scheduled run.
	NotReady Decision = iota
	// Rejected means at least one CI flag failed.
	Rejected
	// Approved means all expected CI flags have been reported and
	// succeeded, the pull request can be merged.
	Approved
)

func (d Decision) String() string {
	switch d {
	case NotReady:
		return "not-ready"
	case Rejected:
		return "rejected"
	case Approved:
		return "approved"
	default:
		return fmt.Sprintf("invalid(%d)", int(d))
	}
}

// Policy defines when a pull request is eligible for merging.
//
// When RequiredFlags is empty the policy is count based: exactly
// ExpectedFlags CI flags must be reported and all of them must be
// successful. The count is configured by the operator and never inferred
// from observed flags. Reporting fewer or more flags than expected results
// in NotReady.
//
// When RequiredFlags is set the named flags must all be present and
// successful, additional unrelated flags are ignored. This avoids the count
// silently getting out of sync when the CI configuration changes.
type Policy struct {
	ExpectedFlags int
	RequiredFlags []string
}

// Decide evaluates the merge eligibility of a pull request from its
// currently reported CI flags.
// It is a pure function, waiting and retrying is the caller's concern.
// A failed flag always takes precedence over a pending one.
func Decide(flags []*pagureclt.Flag, policy Policy) Decision {
	if len(policy.RequiredFlags) > 0 {
		return decideRequired(flags, policy.RequiredFlags)
	}

	return decideCount(flags, policy.ExpectedFlags)
}

func decideCount(flags []*pagureclt.Flag, expected int) Decision {
	if len(flags) != expected {
		return NotReady
	}

	var pending bool
	for _, flag := range flags {
		switch flag.Status {
		case pagureclt.FlagStatusFailure:
			return Rejected
		case pagureclt.FlagStatusPending:
			pending = true
		}
	}

	if pending {
		return NotReady
	}

	return Approved
}

func decideRequired(flags []*pagureclt.Flag, required []string) Decision {
	statusByName := make(map[string]pagureclt.FlagStatus, len(flags))
	for _, flag := range flags {
		statusByName[flag.Name] = flag.Status
	}

	var incomplete bool
	for _, name := range required {
		status, exists := statusByName[name]
		if !exists {
			incomplete = true
			continue
		}

		switch status {
		case pagureclt.FlagStatusFailure:
			return Rejected
		case pagureclt.FlagStatusPending:
			incomplete = true
		}
	}

	if incomplete {
		return NotReady
	}

	return Approved
}
