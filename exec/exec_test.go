package exec

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/reglet-dev/capgate/guest"
	"github.com/reglet-dev/capgate/wireformat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyRunOptions(t *testing.T) {
	tests := []struct {
		name    string
		opts    []RunOption
		workdir string
		timeout time.Duration
		env     []string
	}{
		{name: "defaults", timeout: 30 * time.Second},
		{name: "workdir", opts: []RunOption{WithWorkdir("/tmp")}, workdir: "/tmp", timeout: 30 * time.Second},
		{name: "timeout", opts: []RunOption{WithExecTimeout(2 * time.Second)}, timeout: 2 * time.Second},
		{name: "non-positive timeout ignored", opts: []RunOption{WithExecTimeout(-1)}, timeout: 30 * time.Second},
		{name: "env", opts: []RunOption{WithEnv([]string{"A=1"})}, env: []string{"A=1"}, timeout: 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := applyRunOptions(tt.opts...)
			assert.Equal(t, tt.workdir, cfg.workdir)
			assert.Equal(t, tt.timeout, cfg.timeout)
			assert.Equal(t, tt.env, cfg.env)
			assert.NotNil(t, cfg.client)
		})
	}
}

type fakeHost struct {
	allow bool
	got   CommandRequest
}

func (f *fakeHost) client() *guest.Client {
	load := func(data []byte) []byte {
		if !f.allow {
			return []byte(`{"error":"CAPABILITY_DENIED","message":"subprocess.run","code":403}`)
		}
		return []byte(`{"module":"subprocess.run","members":["run"],"bound":["subprocess"]}`)
	}
	call := func(data []byte) []byte {
		var req wireformat.CallRequestWire
		if err := json.Unmarshal(data, &req); err != nil {
			return nil
		}
		_ = json.Unmarshal(req.Payload, &f.got)
		return []byte(`{"stdout":"hi\n","stderr":"","returncode":3,"duration_ms":4}`)
	}
	return guest.NewClient(load, call)
}

func TestRun(t *testing.T) {
	h := &fakeHost{allow: true}

	resp, err := Run(context.Background(), CommandRequest{Args: []string{"echo", "hi"}},
		WithClient(h.client()), WithWorkdir("/srv"), WithExecTimeout(time.Second))
	require.NoError(t, err)

	assert.Equal(t, "hi\n", resp.Stdout)
	assert.Equal(t, 3, resp.ReturnCode)
	assert.Equal(t, "/srv", h.got.Dir)
	assert.Equal(t, 1000, h.got.TimeoutMs)
	assert.Equal(t, []string{"echo", "hi"}, h.got.Args)
}

func TestRun_RequestFieldsWin(t *testing.T) {
	h := &fakeHost{allow: true}

	_, err := Run(context.Background(), CommandRequest{Args: []string{"true"}, Dir: "/a", TimeoutMs: 7},
		WithClient(h.client()), WithWorkdir("/b"))
	require.NoError(t, err)
	assert.Equal(t, "/a", h.got.Dir)
	assert.Equal(t, 7, h.got.TimeoutMs)
}

func TestRun_Denied(t *testing.T) {
	h := &fakeHost{}

	_, err := Run(context.Background(), CommandRequest{Args: []string{"id"}}, WithClient(h.client()))
	require.Error(t, err)
	assert.True(t, guest.IsDenied(err))
	assert.Nil(t, h.got.Args)
}

func TestRun_NoCommand(t *testing.T) {
	_, err := Run(context.Background(), CommandRequest{})
	assert.EqualError(t, err, "exec: no command")
}
