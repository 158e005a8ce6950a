package policy

type Status string

const (
	StatusDraft                 Status = "DRAFT"
	StatusCollectingInfo        Status = "COLLECTING_INFO"
	StatusUnderInvestigation    Status = "UNDER_INVESTIGATION"
	StatusInvestigationRejected Status = "INVESTIGATION_REJECTED"
	StatusPendingApproval       Status = "PENDING_APPROVAL"
	StatusContractPending       Status = "CONTRACT_PENDING"
	StatusContractUploaded      Status = "CONTRACT_UPLOADED"
	StatusContractSigned        Status = "CONTRACT_SIGNED"
	StatusActive                Status = "ACTIVE"
	StatusCancelled             Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusCollectingInfo, StatusUnderInvestigation, StatusInvestigationRejected,
		StatusPendingApproval, StatusContractPending, StatusContractUploaded, StatusContractSigned,
		StatusActive, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool { return s == StatusActive || s == StatusCancelled }

// AcceptsActorChanges reports whether external parties may still write
// information or evidence while the policy is in s.
func (s Status) AcceptsActorChanges() bool {
	switch s {
	case StatusDraft, StatusCollectingInfo, StatusUnderInvestigation, StatusInvestigationRejected:
		return true
	}
	return false
}

type Event string

const (
	EventStartCollecting       Event = "START_COLLECTING"
	EventAllComplete           Event = "ALL_COMPLETE"
	EventAllApproved           Event = "ALL_APPROVED"
	EventInvestigationRejected Event = "INVESTIGATION_REJECTED"
	EventApprove               Event = "APPROVE"
	EventOverrideProceed       Event = "OVERRIDE_PROCEED"
	EventOverrideReject        Event = "OVERRIDE_REJECT"
	EventContractUploaded      Event = "CONTRACT_UPLOADED"
	EventContractSigned        Event = "CONTRACT_SIGNED"
	EventActivate              Event = "ACTIVATE"
	EventCancel                Event = "CANCEL"
)

// Rule is one row of the transition table. An empty From means "any
// non-terminal status".
type Rule struct {
	Event  Event
	From   []Status
	To     Status
	Action string
}

var rules = map[Event]Rule{
	EventStartCollecting: {EventStartCollecting, []Status{StatusDraft}, StatusCollectingInfo, "status_collecting_info"},
	EventAllComplete:     {EventAllComplete, []Status{StatusCollectingInfo}, StatusUnderInvestigation, "all_actors_complete"},
	EventAllApproved:     {EventAllApproved, []Status{StatusUnderInvestigation}, StatusPendingApproval, "all_actors_approved"},
	EventInvestigationRejected: {EventInvestigationRejected,
		[]Status{StatusUnderInvestigation, StatusPendingApproval}, StatusInvestigationRejected, "investigation_rejected"},
	EventApprove:          {EventApprove, []Status{StatusPendingApproval}, StatusContractPending, "policy_approved"},
	EventOverrideProceed:  {EventOverrideProceed, []Status{StatusInvestigationRejected}, StatusContractPending, "landlord_override_proceed"},
	EventOverrideReject:   {EventOverrideReject, []Status{StatusInvestigationRejected}, StatusInvestigationRejected, "landlord_override_reject"},
	EventContractUploaded: {EventContractUploaded, []Status{StatusContractPending}, StatusContractUploaded, "contract_uploaded"},
	EventContractSigned:   {EventContractSigned, []Status{StatusContractUploaded}, StatusContractSigned, "contract_signed"},
	EventActivate:         {EventActivate, []Status{StatusContractSigned}, StatusActive, "policy_activated"},
	EventCancel:           {EventCancel, nil, StatusCancelled, "policy_cancelled"},
}

func RuleFor(ev Event) (Rule, bool) {
	r, ok := rules[ev]
	return r, ok
}

// Allows reports whether the rule may fire from s.
func (r Rule) Allows(s Status) bool {
	if len(r.From) == 0 {
		return !s.Terminal()
	}
	for _, f := range r.From {
		if f == s {
			return true
		}
	}
	return false
}

// EventForTarget maps a staff-requested target status onto the event that
// reaches it from the current status. ok=false when no single rule applies.
func EventForTarget(from, to Status) (Event, bool) {
	for _, ev := range []Event{
		EventStartCollecting, EventAllComplete, EventAllApproved, EventInvestigationRejected,
		EventApprove, EventContractUploaded, EventContractSigned, EventActivate, EventCancel,
	} {
		r := rules[ev]
		if r.To == to && r.Allows(from) {
			return ev, true
		}
	}
	return "", false
}
