// Package provider defines the uniform send abstraction over the supported
// WhatsApp backends.
package provider

import "context"

// Backend selector values. Adding a backend means adding a constant here,
// a client package, and a case in registry.New.
const (
	NameTwilio = "twilio"
	NameMeta   = "meta"
)

type OutcomeKind int

const (
	// OutcomeSubmitted: the provider accepted the message and assigned an id.
	OutcomeSubmitted OutcomeKind = iota
	// OutcomeRejected: the provider answered and refused the message.
	OutcomeRejected
	// OutcomeTransportFailure: the provider could not be reached.
	OutcomeTransportFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSubmitted:
		return "submitted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransportFailure:
		return "transport_failure"
	}
	return "unknown"
}

// Outcome is the closed result union of a send. ProviderMsgID is set only
// for submitted outcomes; Reason only for the two failure kinds.
type Outcome struct {
	Kind          OutcomeKind
	ProviderMsgID string
	Reason        string
}

func Submitted(providerMsgID string) Outcome {
	return Outcome{Kind: OutcomeSubmitted, ProviderMsgID: providerMsgID}
}

func Rejected(reason string) Outcome {
	return Outcome{Kind: OutcomeRejected, Reason: reason}
}

func TransportFailure(reason string) Outcome {
	return Outcome{Kind: OutcomeTransportFailure, Reason: reason}
}

// Sender submits one message. Implementations never return an error and
// never panic on provider-side failures; every condition folds into an
// Outcome so one bad recipient cannot abort a bulk run. The network call is
// the only blocking operation and honors ctx.
type Sender interface {
	Name() string
	Send(ctx context.Context, to, body string) Outcome
}

// Unconfigured is the sender used when the configured backend selector is
// unknown or missing. Every send resolves to a rejection with a descriptive
// reason; a bad config degrades per message instead of crashing the host.
func Unconfigured(selector string) Sender {
	return unconfigured{selector: selector}
}

type unconfigured struct {
	selector string
}

func (u unconfigured) Name() string { return u.selector }

func (u unconfigured) Send(ctx context.Context, to, body string) Outcome {
	return Rejected("unknown provider: " + u.selector + " (use 'twilio' or 'meta')")
}
