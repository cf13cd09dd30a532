package donations

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(ctx context.Context, path string, body any, headers map[string]string) error
	GET(ctx context.Context, path string) error
	Wallet(name string) (string, error)
	Token(address string) (string, error)
	Username(name string) string
	ResponseField(path string) (any, error)
}

// RegisterSteps registers donation and ledger query steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &donationSteps{tc: tc}

	ctx.Step(`^"([^"]*)" donates (\d+) "([^"]*)" to "([^"]*)" with message "([^"]*)"$`, steps.donate)
	ctx.Step(`^"([^"]*)" donates (\d+) "([^"]*)" to "([^"]*)" as "([^"]*)"$`, steps.donateAs)
	ctx.Step(`^I save the donation id$`, steps.saveDonationID)
	ctx.Step(`^I fetch the saved donation$`, steps.fetchSaved)
	ctx.Step(`^I list donations received by "([^"]*)"$`, steps.listReceived)
	ctx.Step(`^I list donations sent by "([^"]*)"$`, steps.listSent)
}

type donationSteps struct {
	tc         TestContext
	donationID string
}

func (s *donationSteps) donate(ctx context.Context, wallet string, amount int, denom, recipient, message string) error {
	return s.send(ctx, wallet, s.tc.Username(wallet), s.tc.Username(recipient), amount, denom, message)
}

// donateAs signs as wallet but names sender as the sending username.
func (s *donationSteps) donateAs(ctx context.Context, wallet string, amount int, denom, recipient, sender string) error {
	return s.send(ctx, wallet, s.tc.Username(sender), s.tc.Username(recipient), amount, denom, "")
}

func (s *donationSteps) send(ctx context.Context, wallet, sender, recipient string, amount int, denom, message string) error {
	addr, err := s.tc.Wallet(wallet)
	if err != nil {
		return err
	}
	token, err := s.tc.Token(addr)
	if err != nil {
		return err
	}
	body := map[string]any{
		"send_donation": map[string]any{
			"sender":    sender,
			"recipient": recipient,
			"message":   message,
			"funds":     []map[string]string{{"denom": denom, "amount": strconv.Itoa(amount)}},
		},
	}
	return s.tc.POST(ctx, "/v1/execute", body, map[string]string{"Authorization": "Bearer " + token})
}

func (s *donationSteps) saveDonationID(ctx context.Context) error {
	v, err := s.tc.ResponseField("donation_id")
	if err != nil {
		return err
	}
	n, ok := v.(float64)
	if !ok {
		return fmt.Errorf("donation_id is not a number: %v", v)
	}
	s.donationID = strconv.FormatUint(uint64(n), 10)
	return nil
}

func (s *donationSteps) fetchSaved(ctx context.Context) error {
	if s.donationID == "" {
		return fmt.Errorf("no donation id saved")
	}
	return s.tc.GET(ctx, "/v1/donations/"+s.donationID)
}

func (s *donationSteps) listReceived(ctx context.Context, username string) error {
	return s.tc.GET(ctx, "/v1/users/"+s.tc.Username(username)+"/donations/received")
}

func (s *donationSteps) listSent(ctx context.Context, username string) error {
	return s.tc.GET(ctx, "/v1/users/"+s.tc.Username(username)+"/donations/sent")
}
