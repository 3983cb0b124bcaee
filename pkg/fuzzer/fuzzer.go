// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package fuzzer drives model-based generation of harness programs: it builds prompts from
// API combinations, validates and repairs the replies, saves valid programs and steers the
// next combination by the feedback (new call triples or new execution signal).
package fuzzer

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/seqfuzz/seqfuzz/pkg/llm"
	"github.com/seqfuzz/seqfuzz/pkg/log"
	"github.com/seqfuzz/seqfuzz/pkg/mgrconfig"
	"github.com/seqfuzz/seqfuzz/pkg/minimize"
	"github.com/seqfuzz/seqfuzz/pkg/observer"
	"github.com/seqfuzz/seqfuzz/pkg/osutil"
	"github.com/seqfuzz/seqfuzz/pkg/prompt"
	"github.com/seqfuzz/seqfuzz/pkg/runner"
	"github.com/seqfuzz/seqfuzz/pkg/schedule"
	"github.com/seqfuzz/seqfuzz/pkg/seeds"
	"github.com/seqfuzz/seqfuzz/pkg/signal"
	"github.com/seqfuzz/seqfuzz/prog"
	"golang.org/x/sync/errgroup"
)

type Fuzzer struct {
	Stats
	Store    *seeds.Store
	Observer *observer.Observer
	Schedule *schedule.Schedule

	cfg      *mgrconfig.Config
	target   *prog.Target
	handler  llm.Handler
	settings *prompt.Settings
	execOpts *runner.ExecOpts
	banned   map[string]bool

	mu         sync.Mutex
	prompt     *prompt.Prompt
	quietRound int
	// Successes and attempts of the current round, a stuck combination is shuffled.
	roundSucc  int
	roundTotal int
}

func New(cfg *mgrconfig.Config, handler llm.Handler, rnd *rand.Rand) (*Fuzzer, error) {
	store, err := seeds.Open(cfg.TargetDir, cfg.SysTarget)
	if err != nil {
		return nil, err
	}
	tmpDir := filepath.Join(cfg.TargetDir, "tmp")
	if err := osutil.MkdirAll(tmpDir); err != nil {
		return nil, err
	}
	if err := runner.Cleanup(tmpDir); err != nil {
		return nil, err
	}
	counter, err := prompt.LoadCounter(store.SubDir(seeds.MiscDir))
	if err != nil {
		return nil, err
	}
	mode := runner.ModeFuzz
	if cfg.Strict {
		mode = runner.ModeStrict
	}
	ops := cfg.Ops()
	fuzzer := &Fuzzer{
		Stats:    newStats(),
		Store:    store,
		Observer: observer.New(ops),
		Schedule: schedule.New(ops, counter, cfg.CombLen, !cfg.DisablePowerSchedule, rnd),
		cfg:      cfg,
		target:   cfg.SysTarget,
		handler:  handler,
		settings: &prompt.Settings{
			Target:  cfg.SysTarget,
			Desc:    cfg.Description(),
			Rules:   cfg.PromptRules(),
			Driver:  cfg.GenMode == mgrconfig.GenModeFuzzDriver,
			Cot:     cfg.CoT,
			Counter: counter,
			MiscDir: store.SubDir(seeds.MiscDir),
		},
		execOpts: &runner.ExecOpts{
			Mode:    mode,
			Timeout: time.Duration(cfg.ExecTimeout) * time.Second,
			TempDir: tmpDir,
		},
		banned: make(map[string]bool),
	}
	for _, name := range cfg.Rules.Ban {
		fuzzer.banned[name] = true
	}
	if err := fuzzer.restore(); err != nil {
		return nil, err
	}
	return fuzzer, nil
}

// restore loads the feedback of programs saved by previous sessions.
func (fuzzer *Fuzzer) restore() error {
	pairs, err := fuzzer.Store.LoadPairs()
	if err != nil {
		return err
	}
	for _, triples := range pairs {
		fuzzer.Observer.AddTriples(triples)
	}
	progs, err := fuzzer.Store.LoadSucc()
	if err != nil {
		return err
	}
	for _, seed := range progs {
		fuzzer.Observer.AddProgram(seed.Prog)
	}
	if len(progs) != 0 {
		log.Logf(0, "restored %v programs: %v", len(progs), fuzzer.Observer.DumpStates())
	}
	return nil
}

func (fuzzer *Fuzzer) QuietRound() int {
	fuzzer.mu.Lock()
	defer fuzzer.mu.Unlock()
	return fuzzer.quietRound
}

// Prompt returns the current combination.
func (fuzzer *Fuzzer) Prompt() string {
	fuzzer.mu.Lock()
	defer fuzzer.mu.Unlock()
	if fuzzer.prompt == nil {
		return ""
	}
	return fuzzer.prompt.String()
}

func (fuzzer *Fuzzer) Usage() llm.Usage {
	return fuzzer.handler.Usage()
}

func (fuzzer *Fuzzer) initialPrompt() (*prompt.Prompt, error) {
	comb, err := prompt.LoadCombination(fuzzer.settings.MiscDir, fuzzer.target)
	if err != nil {
		return nil, err
	}
	if len(comb) != 0 {
		log.Logf(0, "continuing with the combination of the previous session")
	} else {
		comb = fuzzer.Schedule.ChooseCombination(fuzzer.Schedule.CombLen())
	}
	p := prompt.New(fuzzer.settings, comb)
	fuzzer.mu.Lock()
	fuzzer.prompt = p
	fuzzer.mu.Unlock()
	return p, nil
}

func (fuzzer *Fuzzer) setQuietRound(v int) {
	fuzzer.mu.Lock()
	fuzzer.quietRound = v
	fuzzer.mu.Unlock()
}

// Loop runs generation until the feedback converges, the time budget is exhausted or ctx is
// canceled, and then minimizes the corpus.
func (fuzzer *Fuzzer) Loop(ctx context.Context) error {
	p, err := fuzzer.initialPrompt()
	if err != nil {
		return err
	}
	var deadline time.Time
	if fuzzer.cfg.SeedGenTimeout != 0 {
		deadline = time.Now().Add(time.Duration(fuzzer.cfg.SeedGenTimeout) * time.Minute)
	}
	if fuzzer.settings.Driver {
		err = fuzzer.driverLoop(ctx, p, deadline)
	} else {
		err = fuzzer.apiLoop(ctx, p, deadline)
	}
	if flushErr := fuzzer.Store.Flush(); err == nil {
		err = flushErr
	}
	if err != nil && ctx.Err() == nil {
		return err
	}
	log.Logf(0, "generation finished: %v, %v", fuzzer.Observer.DumpStates(), fuzzer.Usage())
	// Minimization must run to completion even if the session was interrupted.
	_, err = minimize.Corpus(context.Background(), fuzzer.Store, fuzzer.settings.Driver,
		fuzzer.execOpts, fuzzer.cfg.Procs)
	return err
}

func (fuzzer *Fuzzer) stop(ctx context.Context, deadline time.Time) bool {
	if ctx.Err() != nil {
		return true
	}
	if !deadline.IsZero() && time.Now().After(deadline) {
		log.Logf(0, "time budget is exhausted, stopping generation")
		return true
	}
	return fuzzer.QuietRound() >= fuzzer.cfg.FuzzConvergeRound
}

func (fuzzer *Fuzzer) apiLoop(ctx context.Context, p *prompt.Prompt, deadline time.Time) error {
	for loop := 1; !fuzzer.stop(ctx, deadline); loop++ {
		plan := ""
		if fuzzer.cfg.CoT {
			p.SetCotPlan()
			reply, err := fuzzer.handler.GenerateSingle(ctx, p)
			if err != nil {
				log.Errorf("failed to generate an execution plan: %v", err)
			} else {
				plan = reply
				log.Logf(2, "execution plan:\n%v", plan)
			}
		}
		p.SetGenerate()
		if fuzzer.cfg.CoT {
			p.SetCotCode(plan)
		}
		outcomes, err := fuzzer.generate(ctx, p, true)
		if err != nil {
			return err
		}
		fuzzer.statRounds.Add(1)
		if len(outcomes) == 0 {
			fuzzer.Schedule.UpdatePrompt(p)
			continue
		}
		var fresh []prog.Triple
		for _, out := range outcomes {
			triples, err := fuzzer.save(out)
			if err != nil {
				return err
			}
			fresh = append(fresh, triples...)
		}
		p.AddExample(string(outcomes[len(outcomes)-1].Prog.Serialize()))
		quiet := fuzzer.QuietRound()
		if len(fresh) >= fuzzer.cfg.NumNewPairs && len(fresh) != 0 {
			log.Logf(1, "discovered %v new triples", len(fresh))
			quiet = 0
			fuzzer.Schedule.UpdateEnergies(fresh)
		} else {
			quiet++
		}
		fuzzer.setQuietRound(quiet)
		fuzzer.Schedule.UpdatePrompt(p)
		log.Logf(0, "loop %v: quiet round %v, %v", loop, quiet, fuzzer.Observer.DumpStates())
		fuzzer.Schedule.Log()
		if quiet >= fuzzer.cfg.QuietRound {
			break
		}
	}
	return nil
}

func (fuzzer *Fuzzer) driverLoop(ctx context.Context, p *prompt.Prompt, deadline time.Time) error {
	checked := false
	for loop := 1; !fuzzer.stop(ctx, deadline); loop++ {
		outcomes, err := fuzzer.generate(ctx, p, false)
		if err != nil {
			return err
		}
		fuzzer.statRounds.Add(1)
		hasNew := false
		for _, out := range outcomes {
			if _, err := fuzzer.save(out); err != nil {
				return err
			}
			sig := signal.FromSet(out.Res.Signal())
			if !fuzzer.Observer.NewSignal(sig).Empty() {
				hasNew = true
			}
			fuzzer.Observer.MergeSignal(sig)
		}
		if !fuzzer.cfg.DisablePowerSchedule {
			fuzzer.Schedule.UpdateCoverage(fuzzer.Observer.Uses())
		}
		fuzzer.Schedule.UpdatePrompt(p)
		quiet := fuzzer.QuietRound()
		if hasNew {
			quiet = 0
		} else if len(outcomes) != 0 {
			quiet++
		}
		if fuzzer.cfg.Recheck && !checked && quiet >= fuzzer.cfg.FuzzConvergeRound/2 {
			// The corpus evolved, programs accepted early may not hold any more.
			if err := fuzzer.recheck(ctx); err != nil {
				return err
			}
			checked = true
			quiet = 0
			fuzzer.Schedule.UpdatePrompt(p)
		}
		fuzzer.setQuietRound(quiet)
		log.Logf(0, "loop %v: quiet round %v, %v", loop, quiet, fuzzer.Observer.DumpStates())
	}
	return nil
}

// generate asks the model until FuzzRoundSucc valid programs are collected or the combination
// turns out to be stuck. With repair every rejected program gets one repair attempt.
func (fuzzer *Fuzzer) generate(ctx context.Context, p *prompt.Prompt, repair bool) ([]*Outcome, error) {
	fuzzer.roundSucc, fuzzer.roundTotal = 0, 0
	var valid []*Outcome
	for len(valid) < fuzzer.cfg.FuzzRoundSucc {
		if ctx.Err() != nil {
			return valid, nil
		}
		replies, err := fuzzer.handler.Generate(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return valid, nil
			}
			return nil, fmt.Errorf("model request failed: %w", err)
		}
		fuzzer.statReplies.Add(len(replies))
		outcomes, err := fuzzer.validateAll(ctx, replies)
		if err != nil {
			if ctx.Err() != nil {
				return valid, nil
			}
			return nil, err
		}
		for _, out := range outcomes {
			if out.Err != nil && repair {
				out = fuzzer.repair(ctx, p, out)
			}
			fuzzer.roundTotal++
			if out.Err != nil {
				fuzzer.statRejected.Add(1)
				id := fuzzer.Store.NextID()
				if err := fuzzer.Store.SaveErr(id, []byte(out.Text), out.Err.Error()); err != nil {
					return nil, err
				}
				log.Logf(1, "program %v rejected: %v", id, out.Err)
				continue
			}
			fuzzer.roundSucc++
			fuzzer.statValid.Add(1)
			valid = append(valid, out)
		}
		if fuzzer.Schedule.ShouldShuffle(fuzzer.roundSucc, fuzzer.roundTotal) {
			log.Logf(0, "combination %v is stuck, choosing a new one", p)
			fuzzer.statShuffles.Add(1)
			break
		}
	}
	return valid, nil
}

// repair asks the model once to fix a rejected program. The original outcome is returned
// if the repair fails.
func (fuzzer *Fuzzer) repair(ctx context.Context, p *prompt.Prompt, out *Outcome) *Outcome {
	task := p.Task
	defer func() { p.Task = task }()
	p.SetRepair(out.Text, out.Err.Kind.String(), out.Err.Details)
	reply, err := fuzzer.handler.GenerateSingle(ctx, p)
	if err != nil {
		log.Errorf("repair request failed: %v", err)
		fuzzer.statRepairFailed.Add(1)
		return out
	}
	fixed, err := fuzzer.validate(ctx, reply)
	if err != nil || fixed.Err != nil {
		log.Logf(1, "repair failed: %v", out.Err)
		fuzzer.statRepairFailed.Add(1)
		return out
	}
	fuzzer.statRepaired.Add(1)
	return fixed
}

// save stores a valid program and returns the triples it discovered.
func (fuzzer *Fuzzer) save(out *Outcome) ([]prog.Triple, error) {
	id := fuzzer.Store.NextID()
	if _, err := fuzzer.Store.SaveSucc(id, out.Prog); err != nil {
		return nil, err
	}
	triples := out.Prog.Triples()
	if err := fuzzer.Store.SavePairs(id, triples); err != nil {
		return nil, err
	}
	fuzzer.Observer.AddProgram(out.Prog)
	return fuzzer.Observer.AddTriples(triples), nil
}

// recheck re-executes the whole corpus, rejects programs that fail now and recomputes
// the global signal from the survivors.
func (fuzzer *Fuzzer) recheck(ctx context.Context) error {
	progs, err := fuzzer.Store.LoadSucc()
	if err != nil {
		return err
	}
	log.Logf(0, "rechecking %v programs", len(progs))
	results := make([]*runner.Result, len(progs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fuzzer.cfg.Procs)
	for i, seed := range progs {
		g.Go(func() error {
			res, err := runner.Exec(gctx, seed.Prog, fuzzer.execOpts)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	fuzzer.Observer.ResetSignal()
	for i, seed := range progs {
		fuzzer.statRechecked.Add(1)
		res := results[i]
		if res.Failed() {
			fuzzer.statRecheckFailed.Add(1)
			if err := fuzzer.Store.Reject(seed, "recheck: "+res.String()); err != nil {
				return err
			}
			continue
		}
		fuzzer.Observer.MergeSignal(signal.FromSet(res.Signal()))
	}
	return nil
}
