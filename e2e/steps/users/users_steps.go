package users

import (
	"context"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(ctx context.Context, path string, body any, headers map[string]string) error
	GET(ctx context.Context, path string) error
	Wallet(name string) (string, error)
	Token(address string) (string, error)
	Username(name string) string
}

// RegisterSteps registers username registration and lookup steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &userSteps{tc: tc}

	ctx.Step(`^"([^"]*)" registers the username "([^"]*)"$`, steps.register)
	ctx.Step(`^"([^"]*)" registers the username "([^"]*)" for "([^"]*)"$`, steps.registerFor)
	ctx.Step(`^"([^"]*)" is registered as "([^"]*)"$`, steps.isRegistered)
	ctx.Step(`^I look up the user "([^"]*)"$`, steps.lookupByName)
	ctx.Step(`^I look up the wallet of "([^"]*)"$`, steps.lookupByWallet)
	ctx.Step(`^I check whether "([^"]*)" is available$`, steps.checkAvailable)
}

type userSteps struct {
	tc TestContext
}

func (s *userSteps) register(ctx context.Context, wallet, username string) error {
	return s.registerFor(ctx, wallet, username, wallet)
}

// registerFor signs as caller while naming owner's wallet in the request.
func (s *userSteps) registerFor(ctx context.Context, caller, username, owner string) error {
	callerAddr, err := s.tc.Wallet(caller)
	if err != nil {
		return err
	}
	ownerAddr, err := s.tc.Wallet(owner)
	if err != nil {
		return err
	}
	token, err := s.tc.Token(callerAddr)
	if err != nil {
		return err
	}
	body := map[string]any{
		"register_user": map[string]any{
			"user":     map[string]string{"address": ownerAddr},
			"username": s.tc.Username(username),
		},
	}
	return s.tc.POST(ctx, "/v1/execute", body, map[string]string{"Authorization": "Bearer " + token})
}

func (s *userSteps) isRegistered(ctx context.Context, wallet, username string) error {
	if err := s.register(ctx, wallet, username); err != nil {
		return err
	}
	return nil
}

func (s *userSteps) lookupByName(ctx context.Context, username string) error {
	return s.tc.GET(ctx, "/v1/users/"+s.tc.Username(username))
}

func (s *userSteps) lookupByWallet(ctx context.Context, wallet string) error {
	addr, err := s.tc.Wallet(wallet)
	if err != nil {
		return err
	}
	return s.tc.GET(ctx, "/v1/users/by-address/"+addr)
}

func (s *userSteps) checkAvailable(ctx context.Context, username string) error {
	return s.tc.GET(ctx, "/v1/usernames/"+s.tc.Username(username)+"/available")
}
