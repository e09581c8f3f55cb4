package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

// ensureTestMode keeps packages that touch app wiring from dialing
// Postgres or Redis during tests.
func ensureTestMode() {
	once.Do(func() {
		if os.Getenv("GARAGEDESK_TEST_MODE") == "" {
			_ = os.Setenv("GARAGEDESK_TEST_MODE", "1")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
