//go:build !wasip1

package log

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/reglet-dev/capgate/wireformat"
)

var stderrMu sync.Mutex

// platformSink writes records to stderr as JSON lines when the guest code
// is built natively (tests, local runs).
func platformSink(msg wireformat.LogMessageWire) error {
	stderrMu.Lock()
	defer stderrMu.Unlock()
	return json.NewEncoder(os.Stderr).Encode(msg)
}
