package domain

// Status is the provider-independent delivery lifecycle value stored on a
// message attempt. Progression is queued -> sent -> delivered -> read, with
// failed reachable from queued or sent. Providers do not guarantee callback
// ordering, so no transition is rejected as "backward".
type Status string

const (
	StatusQueued    Status = "queued"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return true
	}
	return false
}

// Recipient is one target of a bulk send. Ephemeral input; the phone is
// expected to be E.164-normalized by the caller.
type Recipient struct {
	Phone     string
	FirstName string
	LastName  string
	UserID    int64
}

// DisplayName is the combined name used for the {name} placeholder.
func (r Recipient) DisplayName() string {
	switch {
	case r.FirstName != "" && r.LastName != "":
		return r.FirstName + " " + r.LastName
	case r.FirstName != "":
		return r.FirstName
	default:
		return r.LastName
	}
}

// RecipientResult is the per-recipient entry of a bulk send result.
type RecipientResult struct {
	Phone         string `json:"phone"`
	Status        Status `json:"status"`
	ProviderMsgID string `json:"providerMsgId,omitempty"`
	Error         string `json:"error,omitempty"`
}

// BulkResult summarizes one dispatch call. Transient; the durable record is
// the per-recipient attempt rows.
type BulkResult struct {
	Total   int               `json:"total"`
	Sent    int               `json:"sent"`
	Failed  int               `json:"failed"`
	Results []RecipientResult `json:"results"`
}
