package e2e

import (
	"github.com/cucumber/godog"

	"joblinker/e2e/steps/session"
)

// RegisterSteps wires the session scenarios to the shared test context.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	session.RegisterSteps(ctx, tc)
}
