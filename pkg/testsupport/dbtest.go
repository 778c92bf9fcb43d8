package testsupport

import (
	"fmt"
	"strings"
	"testing"
)

// MemoryDSN returns a shared-cache in-memory sqlite DSN private to t.
func MemoryDSN(t testing.TB) string {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}
