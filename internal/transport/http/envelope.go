package httptransport

import (
	"alpine/internal/superchat"
	dErrors "alpine/pkg/domain-errors"
)

// ExecuteRequest is a tagged union: exactly one field is set.
//
//	{"register_user": {"user": {"address": "alp1..."}, "username": "alice"}}
//	{"send_donation": {"sender": "alice", "recipient": "bob", "message": "gm", "funds": [...]}}
type ExecuteRequest struct {
	RegisterUser *superchat.RegisterUser `json:"register_user,omitempty"`
	SendDonation *superchat.SendDonation `json:"send_donation,omitempty"`
}

func (r ExecuteRequest) intent() (superchat.Intent, error) {
	var found []superchat.Intent
	if r.RegisterUser != nil {
		found = append(found, *r.RegisterUser)
	}
	if r.SendDonation != nil {
		found = append(found, *r.SendDonation)
	}
	if len(found) != 1 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request must name exactly one intent")
	}
	return found[0], nil
}

// QueryRequest is a tagged union: exactly one field is set.
type QueryRequest struct {
	GetSentDonations     *superchat.GetSentDonations     `json:"get_sent_donations,omitempty"`
	GetReceivedDonations *superchat.GetReceivedDonations `json:"get_received_donations,omitempty"`
	GetSingleDonation    *superchat.GetSingleDonation    `json:"get_single_donation,omitempty"`
	GetDonationCount     *superchat.GetDonationCount     `json:"get_donation_count,omitempty"`
	IsUsernameAvailable  *superchat.IsUsernameAvailable  `json:"is_username_available,omitempty"`
	GetAllUsers          *superchat.GetAllUsers          `json:"get_all_users,omitempty"`
	GetUserByAddr        *superchat.GetUserByAddr        `json:"get_user_by_addr,omitempty"`
	GetUserByName        *superchat.GetUserByName        `json:"get_user_by_name,omitempty"`
}

func (r QueryRequest) query() (superchat.Query, error) {
	var found []superchat.Query
	if r.GetSentDonations != nil {
		found = append(found, *r.GetSentDonations)
	}
	if r.GetReceivedDonations != nil {
		found = append(found, *r.GetReceivedDonations)
	}
	if r.GetSingleDonation != nil {
		found = append(found, *r.GetSingleDonation)
	}
	if r.GetDonationCount != nil {
		found = append(found, *r.GetDonationCount)
	}
	if r.IsUsernameAvailable != nil {
		found = append(found, *r.IsUsernameAvailable)
	}
	if r.GetAllUsers != nil {
		found = append(found, *r.GetAllUsers)
	}
	if r.GetUserByAddr != nil {
		found = append(found, *r.GetUserByAddr)
	}
	if r.GetUserByName != nil {
		found = append(found, *r.GetUserByName)
	}
	if len(found) != 1 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request must name exactly one query")
	}
	return found[0], nil
}
