package e2e

import (
	"github.com/cucumber/godog"

	"alpine/e2e/steps/common"
	"alpine/e2e/steps/donations"
	"alpine/e2e/steps/users"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (health, status and field assertions)
	common.RegisterSteps(ctx, tc)

	users.RegisterSteps(ctx, tc)
	donations.RegisterSteps(ctx, tc)
}
