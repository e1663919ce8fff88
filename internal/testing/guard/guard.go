// Package guard flips the test-mode flag before any package init runs.
// Test files import it for side effect so binaries under test never
// start real runtimes.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("TASKDECK_TEST_MODE") == "" {
			_ = os.Setenv("TASKDECK_TEST_MODE", "1")
		}
	})
}
