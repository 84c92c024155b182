// Package annot manages per-violation message threads and per-system task
// lists on top of the replicated store. Its only obligations are
// idempotent application of whatever the store delivers, in whatever
// order, and fire-and-forget writes.
package annot

// Message is one annotation on a violation thread. The timestamp is
// client-generated and doubles as the dedup key: two messages with the
// same timestamp are the same message.
type Message struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Sender    string `json:"sender"`
}

// Task is an operator task attached to a system, referencing one of its
// violations. Status starts "Open"; re-delivery with a changed status
// replaces the rendered entry.
type Task struct {
	ID          string `json:"id"`
	PWSID       string `json:"pwsid"`
	ViolationID string `json:"violationId"`
	Text        string `json:"text"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
}

// Resolution is the audit record written when a regulator marks a
// violation resolved. Write-only in this service; other clients are not
// reconciled against it.
type Resolution struct {
	ViolationID string `json:"violationId"`
	PWSID       string `json:"pwsid"`
	ResolvedBy  string `json:"resolvedBy"`
	ResolvedAt  string `json:"resolvedAt"`
}

// Store paths: messages are partitioned by violation, tasks by system,
// resolutions by violation.
func MessagesPath(violationID string) string    { return "messages/" + violationID }
func TasksPath(pwsid string) string             { return "tasks/" + pwsid }
func ResolutionsPath(violationID string) string { return "resolutions/" + violationID }
