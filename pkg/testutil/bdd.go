package testutil

import "testing"

// Given, When, and Then annotate test phases in the log output without pulling
// in a heavy BDD framework.
func Given(t *testing.T, desc string) {
	t.Helper()
	t.Log("Given " + desc)
}

func When(t *testing.T, desc string) {
	t.Helper()
	t.Log("When " + desc)
}

func Then(t *testing.T, desc string) {
	t.Helper()
	t.Log("Then " + desc)
}
