package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erwinvanhunen/presentink/src/commands"
	"github.com/erwinvanhunen/presentink/src/monitor"
)

type fakeClient struct {
	delivered bool
	resp      commands.Response
	err       error
	got       []commands.Request
}

func (f *fakeClient) Send(_ context.Context, req commands.Request) (bool, commands.Response, error) {
	f.got = append(f.got, req)
	return f.delivered, f.resp, f.err
}

type harness struct {
	cli        *cli
	client     *fakeClient
	localCalls []string
	stdout     *bytes.Buffer
}

func newHarness(client *fakeClient, svc *commands.Service) *harness {
	h := &harness{client: client, stdout: &bytes.Buffer{}}
	h.cli = &cli{
		client: client,
		local: func(_ cliOptions, command string) (*commands.Service, error) {
			h.localCalls = append(h.localCalls, command)
			if svc == nil {
				return nil, errors.New("no local service")
			}
			return svc, nil
		},
		stdin:  strings.NewReader("from stdin\n"),
		stdout: h.stdout,
		stderr: &bytes.Buffer{},
	}
	return h
}

func (h *harness) exec(args ...string) error {
	cmd := h.cli.newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestDelegatesToResident(t *testing.T) {
	client := &fakeClient{delivered: true, resp: commands.Response{OK: true}}
	h := newHarness(client, nil)

	require.NoError(t, h.exec("type", "hello", "[enter]"))
	require.Len(t, client.got, 1)
	assert.Equal(t, commands.TypeText, client.got[0].Command)

	var args commands.TypeTextArgs
	require.NoError(t, json.Unmarshal(client.got[0].Args, &args))
	assert.Equal(t, "hello [enter]", args.Text)
	assert.Empty(t, h.localCalls)
	assert.Equal(t, "ok\n", h.stdout.String())
}

func TestTypeReadsStdin(t *testing.T) {
	client := &fakeClient{delivered: true, resp: commands.Response{OK: true}}
	h := newHarness(client, nil)

	require.NoError(t, h.exec("type", "-"))
	var args commands.TypeTextArgs
	require.NoError(t, json.Unmarshal(client.got[0].Args, &args))
	assert.Equal(t, "from stdin", args.Text)
}

func TestFallsBackToStandalone(t *testing.T) {
	client := &fakeClient{}
	svc := &commands.Service{Monitors: monitor.Static{Monitors: []monitor.Descriptor{
		{Index: 0, Width: 1920, Height: 1080, ScaleFactor: 1},
		{Index: 1, X: 1920, Width: 2560, Height: 1440, ScaleFactor: 2},
	}}}
	h := newHarness(client, svc)

	require.NoError(t, h.exec("monitors"))
	assert.Equal(t, []string{commands.ListMonitors}, h.localCalls)
	out := h.stdout.String()
	assert.Contains(t, out, "INDEX")
	assert.Contains(t, out, "2560")
	assert.Contains(t, out, "2.00")
}

func TestStandaloneFlagSkipsResident(t *testing.T) {
	client := &fakeClient{delivered: true}
	h := newHarness(client, &commands.Service{})

	err := h.exec("--standalone", "draw", "start")
	require.Error(t, err)
	assert.Contains(t, err.Error(), commands.CodeUnavailable)
	assert.Empty(t, client.got)
	assert.Equal(t, []string{commands.StartDraw}, h.localCalls)
}

func TestDelegatedMonitorsDecodeGenericData(t *testing.T) {
	raw := `{"ok":true,"data":[{"index":3,"x":-1280,"y":0,"width":1280,"height":1024,"scale_factor":1.25}]}`
	var resp commands.Response
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	h := newHarness(&fakeClient{delivered: true, resp: resp}, nil)

	require.NoError(t, h.exec("monitors"))
	assert.Contains(t, h.stdout.String(), "-1280")
	assert.Contains(t, h.stdout.String(), "1.25")
}

func TestResidentErrorBecomesExitError(t *testing.T) {
	client := &fakeClient{delivered: true, resp: commands.Response{Error: "Busy, please retry", Code: commands.CodeBusy}}
	h := newHarness(client, nil)

	err := h.exec("screenshot")
	require.Error(t, err)
	assert.Equal(t, "Busy, please retry (busy)", err.Error())
}

func TestClientErrorIsReported(t *testing.T) {
	h := newHarness(&fakeClient{err: errors.New("connection reset")}, nil)
	err := h.exec("close")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Empty(t, h.localCalls)
}

func TestCaptureBuildsRequest(t *testing.T) {
	client := &fakeClient{delivered: true, resp: commands.Response{OK: true}}
	h := newHarness(client, nil)

	require.NoError(t, h.exec("capture", "-m", "1", "--x", "10", "--y", "20", "--width", "300", "--height", "200", "-o", "/tmp/shot.png"))
	var args commands.TakeRegionScreenshotArgs
	require.NoError(t, json.Unmarshal(client.got[0].Args, &args))
	assert.Equal(t, commands.TakeRegionScreenshotArgs{MonitorIndex: 1, X: 10, Y: 20, Width: 300, Height: 200, Path: "/tmp/shot.png", Save: true}, args)

	require.NoError(t, h.exec("capture", "--width", "5", "--height", "5"))
	require.NoError(t, json.Unmarshal(client.got[1].Args, &args))
	assert.False(t, args.Save)
	assert.Empty(t, args.Path)
}

func TestCaptureRequiresSize(t *testing.T) {
	h := newHarness(&fakeClient{}, nil)
	require.Error(t, h.exec("capture", "--x", "1"))
}

func TestLexPrintsTokens(t *testing.T) {
	h := newHarness(&fakeClient{}, nil)
	require.NoError(t, h.exec("lex", "ab[enter][pause:2]"))
	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Empty(t, h.localCalls)
}

func TestJSONOutput(t *testing.T) {
	client := &fakeClient{delivered: true, resp: commands.Response{OK: true, Data: "done"}}
	h := newHarness(client, nil)

	require.NoError(t, h.exec("--json", "break"))
	var resp commands.Response
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "done", resp.Data)
}
