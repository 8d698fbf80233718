package main

import (
	"bytes"
	"encoding/json"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the plugin with args and returns what it wrote to stdout.
func execute(t *testing.T, seed int64, args ...string) string {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(rand.New(rand.NewSource(seed)))
	cmd.SetArgs(append([]string{"--cache-dir", t.TempDir()}, args...))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	require.NoError(t, cmd.Execute(), "stderr: %s", stderr.String())
	return stdout.String()
}

func decode(t *testing.T, output string) map[string]interface{} {
	t.Helper()
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &doc))
	return doc
}

func keys(m map[string]interface{}) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

func assertPercent(t *testing.T, v interface{}, what string) {
	t.Helper()
	f, ok := v.(float64)
	require.True(t, ok, "%s is not a number: %T", what, v)
	assert.Equal(t, math.Trunc(f), f, "%s is not an integer", what)
	assert.GreaterOrEqual(t, f, 0.0, what)
	assert.LessOrEqual(t, f, 100.0, what)
}

func TestTopLevelFields(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	doc := decode(t, execute(t, 1))

	assert.Equal(t,
		[]string{"events", "inventory", "metrics", "name", "plugin_version", "protocol_version", "status"},
		keys(doc))
	assert.Equal(t, "example", doc["name"])
	assert.Equal(t, "1", doc["protocol_version"])
	assert.Equal(t, "1.0.0", doc["plugin_version"])
	assert.Equal(t, "OK", doc["status"])
	assert.Equal(t, []interface{}{}, doc["events"])
}

func TestInventoryShape(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		doc := decode(t, execute(t, seed))

		inventory, ok := doc["inventory"].(map[string]interface{})
		require.True(t, ok)
		require.Equal(t, []string{"item1", "item2", "item3"}, keys(inventory))

		for item, raw := range inventory {
			attrs, ok := raw.(map[string]interface{})
			require.True(t, ok, item)
			require.Equal(t, []string{"valueOne", "valueThree", "valueTwo"}, keys(attrs), item)
			for k, v := range attrs {
				assertPercent(t, v, item+"."+k)
			}
		}
	}
}

func TestMetricRecord(t *testing.T) {
	check := func(t *testing.T) {
		doc := decode(t, execute(t, 7))

		metrics, ok := doc["metrics"].([]interface{})
		require.True(t, ok)
		require.Len(t, metrics, 1)

		record, ok := metrics[0].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "DatastoreSample", record["event_type"])
		assert.Equal(t, "ExampleServer", record["provider"])
		assert.NotContains(t, record, "environment")
		for _, key := range metricKeys {
			assertPercent(t, record[key], key)
		}
	}

	t.Run("empty environment", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "")
		check(t)
	})
	t.Run("unset environment", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "") // restores the original value on cleanup
		require.NoError(t, os.Unsetenv("ENVIRONMENT"))
		_, set := os.LookupEnv("ENVIRONMENT")
		require.False(t, set)
		check(t)
	})
}

func TestEnvironmentFromEnv(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	doc := decode(t, execute(t, 3))

	record := doc["metrics"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "prod", record["environment"])
}

func TestEnvironmentFlagOverridesEnv(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	doc := decode(t, execute(t, 3, "--environment", "staging"))

	record := doc["metrics"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "staging", record["environment"])
}

func TestPrettyAndCompactAgree(t *testing.T) {
	compact := execute(t, 42)
	pretty := execute(t, 42, "-p")

	assert.Equal(t, 1, strings.Count(compact, "\n"), "compact output should be a single line")
	assert.Greater(t, strings.Count(pretty, "\n"), 1)
	assert.Contains(t, pretty, "\n    \"name\": \"example\"")

	assert.Equal(t, decode(t, compact), decode(t, pretty))
}

func TestVerboseLogsToStderr(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(rand.New(rand.NewSource(1)))
	cmd.SetArgs([]string{"--cache-dir", t.TempDir(), "-v"})
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	require.NoError(t, cmd.Execute())

	assert.Contains(t, stderr.String(), "adding metric")
	assert.Contains(t, stderr.String(), "set inventory key")
	assert.NotContains(t, stdout.String(), "adding metric")
	decode(t, stdout.String())
}

func TestSelectCollectors(t *testing.T) {
	doc := decode(t, execute(t, 5, "--metrics"))
	assert.Empty(t, doc["inventory"])
	assert.Len(t, doc["metrics"], 1)

	doc = decode(t, execute(t, 5, "--inventory"))
	assert.Len(t, doc["inventory"], 3)
	assert.Empty(t, doc["metrics"])

	doc = decode(t, execute(t, 5, "--inventory", "--metrics"))
	assert.Len(t, doc["inventory"], 3)
	assert.Len(t, doc["metrics"], 1)
}

func TestDotOutput(t *testing.T) {
	out := execute(t, 5, "--dot")

	assert.True(t, strings.HasPrefix(out, "digraph"), out)
	assert.Contains(t, out, "item1")
	assert.Contains(t, out, "provider.valueOne")
}

func TestSameSeedSameOutput(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	assert.Equal(t, execute(t, 11), execute(t, 11))
}

func TestCorruptCacheStillPublishes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "example.json"), []byte(`{"x":`), 0o644))

	doc := decode(t, execute(t, 9, "--cache-dir", dir))
	assert.Len(t, doc["inventory"], 3)
	assert.Len(t, doc["metrics"], 1)
}

func TestBlockedCacheDirStillPublishes(t *testing.T) {
	// A regular file where the cache directory should be.
	blocker := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	doc := decode(t, execute(t, 9, "--cache-dir", blocker))
	assert.Len(t, doc["inventory"], 3)
	assert.Len(t, doc["metrics"], 1)
}

func TestQuietWithoutVerbose(t *testing.T) {
	t.Setenv("VERBOSE", "")
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(rand.New(rand.NewSource(1)))
	cmd.SetArgs([]string{"--cache-dir", t.TempDir()})
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	require.NoError(t, cmd.Execute())

	assert.Empty(t, stderr.String())
	decode(t, stdout.String())
}
