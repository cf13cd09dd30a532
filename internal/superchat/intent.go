// Package superchat dispatches authenticated intents and read-only queries over
// the registry and the donation ledger.
package superchat

import (
	ledger "alpine/internal/ledger/models"
	registry "alpine/internal/registry/models"
	"alpine/internal/transfer"
)

// Intent is a state-changing request. The concrete types are RegisterUser and SendDonation.
type Intent interface {
	intentName() string
}

// RegisterUser claims Username for Identity. Identity.Address must be the caller.
type RegisterUser struct {
	Identity registry.Identity `json:"user"`
	Username string            `json:"username"`
}

// SendDonation donates Funds to Recipient. An empty Sender donates anonymously
// from the caller's address.
type SendDonation struct {
	Sender    string       `json:"sender"`
	Recipient string       `json:"recipient"`
	Message   string       `json:"message"`
	Funds     ledger.Funds `json:"funds"`
}

func (RegisterUser) intentName() string { return "register_user" }
func (SendDonation) intentName() string { return "send_donation" }

// intentLabel names intent for tracing. Nil and pointer intents are unsupported.
func intentLabel(intent Intent) string {
	switch intent.(type) {
	case RegisterUser, SendDonation:
		return intent.intentName()
	}
	return "unsupported"
}

// Attribute is one observable key/value produced by an intent.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Result is what a successful intent reports back.
type Result struct {
	Attributes []Attribute        `json:"attributes"`
	Effects    []transfer.Effect  `json:"effects"`
	DonationID uint64             `json:"donation_id,omitempty"`
	User       *registry.Identity `json:"user,omitempty"`
}

// Attr returns the value of the first attribute named key.
func (r *Result) Attr(key string) (string, bool) {
	for _, a := range r.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}
