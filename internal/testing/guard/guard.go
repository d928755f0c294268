// Package guard switches the process into test mode when imported, so
// entry points exercised from tests skip runtime startup.
package guard

import (
	"os"
	"sync"
)

const envTestMode = "BOOKS_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(envTestMode) == "" {
			_ = os.Setenv(envTestMode, "1")
		}
	})
}
