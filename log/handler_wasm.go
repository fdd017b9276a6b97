//go:build wasip1

package log

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/reglet-dev/capgate/internal/abi"
	"github.com/reglet-dev/capgate/wireformat"
)

// platformSink sends records to the host's log import.
func platformSink(msg wireformat.LogMessageWire) error {
	data, err := json.Marshal(msg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "capgate: failed to marshal log record: %v: %s\n", err, msg.Message)
		return nil
	}
	abi.Log(data)
	return nil
}
