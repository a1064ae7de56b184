package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("STAFFORA_TEST_MODE") == "" {
			_ = os.Setenv("STAFFORA_TEST_MODE", "1")
		}
	})
}
