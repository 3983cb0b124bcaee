// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/seqfuzz/seqfuzz/pkg/llm"
	"github.com/seqfuzz/seqfuzz/pkg/mgrconfig"
	"github.com/seqfuzz/seqfuzz/pkg/prompt"
	"github.com/seqfuzz/seqfuzz/pkg/seeds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler replays canned replies: every Generate call returns the next batch,
// the last batch repeats forever.
type testHandler struct {
	mu      sync.Mutex
	batches [][]string
	repairs []string
	users   []string
	tasks   []prompt.TaskKind
}

func (h *testHandler) Generate(ctx context.Context, p *prompt.Prompt) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.users = append(h.users, p.User())
	h.tasks = append(h.tasks, p.Task.Kind)
	batch := h.batches[0]
	if len(h.batches) > 1 {
		h.batches = h.batches[1:]
	}
	return batch, nil
}

func (h *testHandler) GenerateSingle(ctx context.Context, p *prompt.Prompt) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.users = append(h.users, p.User())
	h.tasks = append(h.tasks, p.Task.Kind)
	if p.Task.Kind == prompt.CotPlan {
		return "1. compute checksums\n2. compare them", nil
	}
	if len(h.repairs) == 0 {
		return "", fmt.Errorf("no repairs left")
	}
	reply := h.repairs[0]
	h.repairs = h.repairs[1:]
	return reply, nil
}

func (h *testHandler) Usage() llm.Usage {
	return llm.Usage{}
}

func testConfig(t *testing.T, extra string) *mgrconfig.Config {
	cfg, err := mgrconfig.LoadData([]byte(fmt.Sprintf(`{
		"target": "zlib",
		"workdir": %q,
		"model": "test",
		"api_key_env": "",
		"n_sample": 2,
		"procs": 2,
		"quiet_round": 2,
		"num_new_pairs": 1,
		"exec_timeout": 5
		%v
	}`, t.TempDir(), extra)))
	require.NoError(t, err)
	return cfg
}

const (
	progA = "r0 = crc32(0, 'a', 1)\nr1 = crc32(r0, 'b', 1)\nr2 = adler32(1, 'c', 1)\n"
	progB = "r0 = adler32(1, 'a', 1)\nr1 = adler32(r0, 'b', 1)\nr2 = crc32(0, 'c', 1)\n"
)

func readDir(t *testing.T, dir string) []string {
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, f.Name())
	}
	return names
}

func TestAPILoop(t *testing.T) {
	cfg := testConfig(t, "")
	h := &testHandler{batches: [][]string{
		{"```\n" + progA + "```", "r0 = crc33(0)"},
		{progB},
		{progA},
	}}
	h.repairs = []string{"r0 = crc32(0, 'zzz', 3)"}
	f, err := New(cfg, h, rand.New(rand.NewSource(0)))
	require.NoError(t, err)
	require.NoError(t, f.Loop(context.Background()))

	// Round 1: progA plus the repaired reply, round 2: progB (new triple),
	// rounds 3 and 4: nothing new, the quiet round limit stops the loop.
	assert.Equal(t, []string{"id_000000", "id_000001", "id_000002", "id_000003", "id_000004"},
		readDir(t, f.Store.SubDir(seeds.SuccDir)))
	assert.Empty(t, readDir(t, f.Store.SubDir(seeds.ErrDir)))
	assert.Equal(t, 2, f.QuietRound())
	assert.Equal(t, 2, f.Observer.NumTriples())
	assert.Contains(t, h.users[1], "Error Type: Link Error")
	assert.Contains(t, h.users[2], "Here are some successful examples:")

	// Minimization keeps one program per triple.
	assert.Equal(t, []string{"id_000000", "id_000002"}, readDir(t, f.Store.SubDir(seeds.MinDir)))
	counter, err := os.ReadFile(filepath.Join(f.Store.SubDir(seeds.MiscDir), "prompt_counter.json"))
	require.NoError(t, err)
	assert.NotEmpty(t, counter)
	assert.FileExists(t, filepath.Join(f.Store.SubDir(seeds.MiscDir), "seed_meta.json"))
}

func TestRejectedPrograms(t *testing.T) {
	cfg := testConfig(t, `, "strict": true`)
	h := &testHandler{batches: [][]string{
		{progA + "expect_eq(r0, 1)\n", "r0 = crc32(0, 'a', 1)\nr1 = inflateInit()\n"},
		{progA},
	}}
	f, err := New(cfg, h, rand.New(rand.NewSource(0)))
	require.NoError(t, err)
	require.NoError(t, f.Loop(context.Background()))
	errs := readDir(t, f.Store.SubDir(seeds.ErrDir))
	assert.Equal(t, []string{"id_000000", "id_000000.err", "id_000001", "id_000001.err"}, errs)
	reason, err := os.ReadFile(filepath.Join(f.Store.SubDir(seeds.ErrDir), "id_000000.err"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(reason), "Execution Error: "), string(reason))
	leak, err := os.ReadFile(filepath.Join(f.Store.SubDir(seeds.ErrDir), "id_000001.err"))
	require.NoError(t, err)
	assert.Contains(t, string(leak), "leak")
}

func TestCot(t *testing.T) {
	cfg := testConfig(t, `, "cot": true, "quiet_round": 1`)
	h := &testHandler{batches: [][]string{{progA}}}
	f, err := New(cfg, h, rand.New(rand.NewSource(0)))
	require.NoError(t, err)
	require.NoError(t, f.Loop(context.Background()))
	require.GreaterOrEqual(t, len(h.tasks), 2)
	assert.Equal(t, prompt.CotPlan, h.tasks[0])
	assert.Equal(t, prompt.CotCode, h.tasks[1])
	assert.Contains(t, h.users[1], "Execution Plan:\n1. compute checksums")
}

func TestDriverLoop(t *testing.T) {
	cfg := testConfig(t, `, "gen_mode": "fuzz-driver", "fuzz_converge_round": 4, "recheck": true`)
	h := &testHandler{batches: [][]string{{progA}, {progB}, {progA}}}
	f, err := New(cfg, h, rand.New(rand.NewSource(0)))
	require.NoError(t, err)
	require.NoError(t, f.Loop(context.Background()))
	assert.GreaterOrEqual(t, f.QuietRound(), 4)
	assert.Positive(t, f.Observer.SignalLen())
	assert.NotEmpty(t, readDir(t, f.Store.SubDir(seeds.MinDir)))
}

func TestResume(t *testing.T) {
	cfg := testConfig(t, `, "quiet_round": 1`)
	h := &testHandler{batches: [][]string{{progA}}}
	f, err := New(cfg, h, rand.New(rand.NewSource(0)))
	require.NoError(t, err)
	require.NoError(t, f.Loop(context.Background()))
	first := f.Prompt()

	f2, err := New(cfg, h, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, 1, f2.Observer.NumTriples())
	p, err := f2.initialPrompt()
	require.NoError(t, err)
	assert.Equal(t, first, p.String())
	assert.Equal(t, 2, f2.Store.NextID())
}

func TestClassify(t *testing.T) {
	cfg := testConfig(t, "")
	f, err := New(cfg, &testHandler{}, rand.New(rand.NewSource(0)))
	require.NoError(t, err)
	tests := []struct {
		text string
		kind ErrorKind
	}{
		{"r0 = crc32(0, 'a'", ErrSyntax},
		{"Sure! Nothing to see here.", ErrSyntax},
		{"r0 = crc64(0, 'a', 1)", ErrLink},
		{"r0 = crc32(0, 'a', UNKNOWN_CONST)", ErrLink},
		{"r0 = crc32('a', 0, 1)", ErrType},
		{"r0 = deflateInit(6)\nr1 = inflate(r0, 'x', 0)", ErrType},
		{"r0 = uncompress('garbage', 10) (guard: 3)", ErrExecute},
		{"expect_eq(1, 2)\nr0 = crc32(0, nil, 0)", ErrExecute},
	}
	for _, test := range tests {
		out, err := f.validate(context.Background(), test.text)
		require.NoError(t, err)
		if assert.NotNil(t, out.Err, test.text) {
			assert.Equal(t, test.kind, out.Err.Kind, "%v: %v", test.text, out.Err)
		}
	}
	out, err := f.validate(context.Background(), progA)
	require.NoError(t, err)
	assert.Nil(t, out.Err)
}
