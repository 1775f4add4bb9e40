package testutil

import "testing"

// When opens a subtest for the action under test.
func When(t *testing.T, action string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("when "+action, fn)
}

// Then opens a subtest for one observable outcome of the enclosing When.
func Then(t *testing.T, outcome string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("then "+outcome, fn)
}
