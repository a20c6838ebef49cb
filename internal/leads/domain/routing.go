package domain

const (
	// PriorityNew places a first-time contact at the bottom of the queue.
	PriorityNew = 9999
	// PriorityReentry moves a returning contact to the top of the queue.
	PriorityReentry = 1
)

// Routing is the queue placement of a lead after an inbound contact.
type Routing struct {
	NeedsManagerReview bool
	QueuePriority      int
}

// Route decides queue placement. A returning contact is escalated to manager
// review and jumps the queue; a new one waits at the bottom.
func Route(isReentry bool) Routing {
	if isReentry {
		return Routing{NeedsManagerReview: true, QueuePriority: PriorityReentry}
	}
	return Routing{NeedsManagerReview: false, QueuePriority: PriorityNew}
}

// Apply writes the routing onto lead.
func (r Routing) Apply(lead *Lead) {
	lead.NeedsManagerReview = r.NeedsManagerReview
	lead.QueuePriority = r.QueuePriority
}
