package notify

// TopicPendingRequests carries discount request creation events to every
// connected approver.
const TopicPendingRequests = "discounts.pending"

// SessionTopic scopes resolution events to the session that is waiting on
// them.
func SessionTopic(sessionID string) string {
	return "discounts.session." + sessionID
}
