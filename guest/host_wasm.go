//go:build wasip1

package guest

import "github.com/reglet-dev/capgate/internal/abi"

func hostLoad(request []byte) []byte { return abi.Load(request) }

func hostCall(request []byte) []byte { return abi.Call(request) }
