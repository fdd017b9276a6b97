package guestnet_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/reglet-dev/capgate/guest"
	guestnet "github.com/reglet-dev/capgate/net"
	"github.com/reglet-dev/capgate/wireformat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHost admits the given roots and answers net.dns and net.filter.
func stubHost(t *testing.T, roots ...string) (*guest.Client, *[]wireformat.CallRequestWire) {
	t.Helper()
	allowed := map[string]bool{}
	for _, r := range roots {
		allowed[r] = true
	}
	var calls []wireformat.CallRequestWire

	load := func(data []byte) []byte {
		var req wireformat.LoadRequestWire
		require.NoError(t, json.Unmarshal(data, &req))
		root := req.Name
		for i, c := range req.Name {
			if c == '.' {
				root = req.Name[:i]
				break
			}
		}
		if !allowed[root] {
			return []byte(`{"error":"CAPABILITY_DENIED","message":"denied","code":403}`)
		}
		out, _ := json.Marshal(wireformat.LoadResponseWire{Module: req.Name, Bound: []string{root}})
		return out
	}
	call := func(data []byte) []byte {
		var req wireformat.CallRequestWire
		require.NoError(t, json.Unmarshal(data, &req))
		calls = append(calls, req)
		switch req.Module + "." + req.Member {
		case "net.dns.lookup":
			var in struct {
				Hostname string `json:"hostname"`
				Type     string `json:"type"`
			}
			require.NoError(t, json.Unmarshal(req.Payload, &in))
			if in.Type == "TXT" {
				return []byte(`{"records":["v=spf1 -all"]}`)
			}
			return []byte(`{"records":["93.184.216.34"]}`)
		case "net.filter.check":
			return []byte(`{"allowed":false,"reason":"loopback","resolved_ip":"127.0.0.1"}`)
		}
		return []byte(`{"error":"NOT_FOUND","message":"member","code":404}`)
	}
	return guest.NewClient(load, call), &calls
}

func TestLookupHost(t *testing.T) {
	c, calls := stubHost(t, "net")

	addrs, err := guestnet.LookupHost(context.Background(), "example.com", guestnet.WithClient(c))
	require.NoError(t, err)
	assert.Equal(t, []string{"93.184.216.34"}, addrs)

	txt, err := guestnet.LookupTXT(context.Background(), "example.com", guestnet.WithClient(c), guestnet.WithTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, []string{"v=spf1 -all"}, txt)

	require.Len(t, *calls, 2)
	assert.Equal(t, "net.dns", (*calls)[0].Module)
	assert.Positive(t, (*calls)[1].Context.TimeoutMs)
}

func TestLookupHost_Denied(t *testing.T) {
	c, calls := stubHost(t, "math")

	_, err := guestnet.LookupIPv4(context.Background(), "example.com", guestnet.WithClient(c))
	require.Error(t, err)
	assert.True(t, guest.IsDenied(err))
	assert.Empty(t, *calls)
}

func TestCheckAddress(t *testing.T) {
	c, _ := stubHost(t, "net")

	res, err := guestnet.CheckAddress(context.Background(), "127.0.0.1:80", guestnet.WithClient(c))
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, "loopback", res.Reason)
}
