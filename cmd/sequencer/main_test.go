package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mpas/sequencer/cmd/sequencer/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.2.0", "abc123", "2024-05-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sequencer 1.2.0")
	assert.Contains(t, out, "commit: abc123")
	assert.Contains(t, out, "built: 2024-05-01")
}

func TestRootCmdHelp(t *testing.T) {
	out, err := run(t, "", "--help")
	require.NoError(t, err)

	for _, sub := range []string{"serve", "migrate", "schedule", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestServeCmdFlags(t *testing.T) {
	cmd := newServeCmd()
	f := cmd.Flags().Lookup("migrate")
	require.NotNil(t, f)
	assert.Equal(t, "false", f.DefValue)
}

func TestMigrateCmd_RejectsUnknownDirection(t *testing.T) {
	_, err := run(t, "", "migrate", "sideways")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sideways")

	_, err = run(t, "", "migrate", "up", "down")
	assert.Error(t, err)
}

const ordersJSON = `[
	{"RowID": 1, "MaterialCode": "A", "MaterialDesc": "Alpha"},
	{"RowID": 2, "MaterialCode": "A", "MaterialDesc": "Alpha"},
	{"RowID": 3, "MaterialCode": "B", "MaterialDesc": "Beta"},
	{"RowID": 4, "MaterialCode": "A", "MaterialDesc": "Alpha"}
]`

func TestScheduleCmd_FromAnchor(t *testing.T) {
	out, err := run(t, ordersJSON, "schedule", "--anchor", "2024-01-01T08:00:00Z", "--takt", "240")
	require.NoError(t, err)

	var orders []models.Order
	require.NoError(t, json.Unmarshal([]byte(out), &orders))
	require.Len(t, orders, 4)

	start := time.Date(2024, 1, 1, 8, 4, 0, 0, time.UTC)
	for i, o := range orders {
		require.NotNil(t, o.ScheduledTime)
		assert.True(t, start.Add(time.Duration(i)*4*time.Minute).Equal(*o.ScheduledTime), "order %d", o.RowID)
	}
}

func TestScheduleCmd_NowAndGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, os.WriteFile(path, []byte(ordersJSON), 0o644))

	out, err := run(t, "", "schedule", "--file", path, "--now", "2024-01-01T10:00:00.900Z", "--takt", "60", "--groups")
	require.NoError(t, err)

	var res struct {
		Orders []models.Order         `json:"orders"`
		Groups []models.MaterialGroup `json:"groups"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))

	ten := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.True(t, ten.Equal(*res.Orders[0].ScheduledTime), "no anchor starts at now, whole seconds")
	assert.True(t, ten.Add(3*time.Minute).Equal(*res.Orders[3].ScheduledTime))

	require.Len(t, res.Groups, 3)
	assert.Equal(t, []int{2, 1, 1}, []int{res.Groups[0].Count, res.Groups[1].Count, res.Groups[2].Count})
}

func TestScheduleCmd_Errors(t *testing.T) {
	_, err := run(t, ordersJSON, "schedule", "--takt", "0")
	assert.Error(t, err)

	_, err = run(t, ordersJSON, "schedule", "--anchor", "tomorrow")
	assert.Error(t, err)

	_, err = run(t, "{", "schedule")
	assert.Error(t, err)

	out, err := run(t, "", "schedule")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}
