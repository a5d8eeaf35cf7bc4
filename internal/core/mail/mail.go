// Package mail contains the pure business logic for the messaging protocol:
// message types, priorities, and the filename identity codec. No I/O.
package mail

// Type identifies the kind of inter-agent message.
type Type string

const (
	TypeContract     Type = "contract"
	TypeDirective    Type = "directive"
	TypeReport       Type = "report"
	TypeRequest      Type = "request"
	TypeReview       Type = "review"
	TypeResult       Type = "result"
	TypeInquiry      Type = "inquiry"
	TypeStatusUpdate Type = "status_update"
)

// Types returns all defined message types.
func Types() []Type {
	return []Type{TypeContract, TypeDirective, TypeReport, TypeRequest, TypeReview, TypeResult, TypeInquiry, TypeStatusUpdate}
}

// ValidType reports whether t is a defined message type.
func ValidType(t Type) bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}

// Priority is the delivery priority of a message.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ValidPriority reports whether p is a defined priority.
func ValidPriority(p Priority) bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// DefaultPriority is used when a sender does not specify one.
func DefaultPriority() Priority {
	return PriorityMedium
}
