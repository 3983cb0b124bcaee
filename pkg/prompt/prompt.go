// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package prompt builds model prompts for harness generation: an API combination, the task
// (generate, plan, code from a plan, repair) and recent successful programs as examples.
package prompt

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/seqfuzz/seqfuzz/pkg/log"
	"github.com/seqfuzz/seqfuzz/prog"
)

type TaskKind int

const (
	Generate TaskKind = iota
	CotPlan
	CotCode
	Repair
)

func (k TaskKind) String() string {
	return [...]string{"generate", "cot-plan", "cot-code", "repair"}[k]
}

type Task struct {
	Kind TaskKind
	// Plan is the execution plan for CotCode.
	Plan string
	// Failed, ErrType and ErrDetails describe the program to repair.
	Failed     string
	ErrType    string
	ErrDetails string
}

// Settings are shared by all prompts of one generation session.
type Settings struct {
	Target *prog.Target
	// Desc is prepended to the library context of the system message.
	Desc  string
	Rules []string
	// Driver selects fuzz-driver templates instead of API-combination ones.
	Driver bool
	Cot    bool
	// Counter counts how many times every op was offered to the model, may be nil.
	Counter *Counter
	// MiscDir keeps the last combination (prompt.json), no persistence if empty.
	MiscDir string
}

const MaxExamples = 2

type Prompt struct {
	Combination []*prog.Op
	Task        Task

	settings *Settings
	examples []string
}

func New(settings *Settings, comb []*prog.Op) *Prompt {
	p := &Prompt{settings: settings}
	if settings.Cot && !settings.Driver {
		p.Task.Kind = CotPlan
	}
	p.SetCombination(comb)
	return p
}

// SetCombination replaces the API combination and accounts it in the usage counter.
func (p *Prompt) SetCombination(comb []*prog.Op) {
	p.Combination = comb
	names := OpNames(comb)
	log.Logf(1, "selected combination: %v", strings.Join(names, ", "))
	if p.settings.Counter != nil {
		p.settings.Counter.Inc(names)
		if err := p.settings.Counter.Save(); err != nil {
			log.Errorf("failed to save prompt counter: %v", err)
		}
	}
	if p.settings.MiscDir != "" {
		if err := SaveCombination(p.settings.MiscDir, names); err != nil {
			log.Errorf("failed to save prompt: %v", err)
		}
	}
}

func (p *Prompt) SetGenerate() {
	p.Task = Task{Kind: Generate}
}

func (p *Prompt) SetCotPlan() {
	p.Task = Task{Kind: CotPlan}
}

func (p *Prompt) SetCotCode(plan string) {
	p.Task = Task{Kind: CotCode, Plan: plan}
}

func (p *Prompt) SetRepair(failed, errType, details string) {
	p.Task = Task{Kind: Repair, Failed: failed, ErrType: errType, ErrDetails: details}
}

// AddExample remembers a successful program, only the MaxExamples most recent ones are kept.
func (p *Prompt) AddExample(text string) {
	if len(p.examples) >= MaxExamples {
		p.examples = p.examples[1:]
	}
	p.examples = append(p.examples, strings.TrimSpace(text))
}

func (p *Prompt) Examples() []string {
	return append([]string{}, p.examples...)
}

func (p *Prompt) String() string {
	return strings.Join(OpNames(p.Combination), ", ")
}

// System returns the system message: role, notation and the library context.
func (p *Prompt) System() string {
	role := systemAPITemplate
	if p.settings.Driver {
		role = systemDriverTemplate
	}
	target := p.settings.Target
	desc := p.settings.Desc
	if desc == "" {
		desc = target.Desc
	}
	return role + expand(systemContextTemplate, map[string]string{
		"{description}": desc,
		"{notation}":    expand(notationPrimer, map[string]string{"{example}": indent(exampleSeed(target))}),
		"{project}":     target.Name,
		"{APIs}":        strings.TrimSpace(target.Describe(nil)),
		"{resources}":   describeResources(target),
		"{constants}":   strings.TrimSpace(target.DescribeConsts()),
	})
}

// User returns the user message for the current task.
func (p *Prompt) User() string {
	vars := map[string]string{
		"{project}":             p.settings.Target.Name,
		"{combinations}":        p.combinationString(),
		"{successful_examples}": p.examplesString(),
		"{project_rules}":       p.rulesString(),
	}
	if p.settings.Driver {
		return expand(userDriverTemplate, vars)
	}
	switch p.Task.Kind {
	case CotPlan:
		return expand(userCotPlanTemplate, vars)
	case CotCode:
		vars["{execution_plan}"] = p.Task.Plan
		return expand(userCotCodeTemplate, vars)
	case Repair:
		return expand(repairTemplate, map[string]string{
			"{failed_program}": p.Task.Failed,
			"{error_type}":     p.Task.ErrType,
			"{error_details}":  p.Task.ErrDetails,
		})
	}
	return expand(userAPITemplate, vars)
}

func (p *Prompt) combinationString() string {
	var sigs []string
	for _, op := range p.Combination {
		sigs = append(sigs, prog.Prototype(op))
	}
	return strings.Join(sigs, ",\n    ")
}

func (p *Prompt) examplesString() string {
	if len(p.examples) == 0 {
		return ""
	}
	return fmt.Sprintf("Here are some successful examples:\n```\n%v\n```\n", strings.Join(p.examples, "\n\n---\n\n"))
}

func (p *Prompt) rulesString() string {
	if len(p.settings.Rules) == 0 {
		return "(none)"
	}
	var lines []string
	for i, rule := range p.settings.Rules {
		lines = append(lines, fmt.Sprintf("%v. %v", i+1, rule))
	}
	return strings.Join(lines, "\n")
}

func OpNames(ops []*prog.Op) []string {
	var names []string
	for _, op := range ops {
		names = append(names, op.Name)
	}
	return names
}

func expand(template string, vars map[string]string) string {
	var pairs []string
	for k, v := range vars {
		pairs = append(pairs, k, v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func indent(text string) string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		lines = append(lines, "  "+line)
	}
	return strings.Join(lines, "\n") + "\n"
}

func describeResources(target *prog.Target) string {
	var lines []string
	for _, res := range target.Resources {
		var acq []string
		for _, op := range target.Acquirers(res) {
			acq = append(acq, op.Name)
		}
		lines = append(lines, fmt.Sprintf("%v: acquired by %v, released by %v",
			res.Name, strings.Join(acq, ", "), res.Release))
	}
	if len(lines) == 0 {
		return "(none)"
	}
	return strings.Join(lines, "\n")
}

// exampleSeed picks the seed program calling the largest number of distinct library ops.
func exampleSeed(target *prog.Target) string {
	if target.Seeds == nil {
		return ""
	}
	files, err := fs.ReadDir(target.Seeds, ".")
	if err != nil {
		return ""
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })
	best, bestOps := "", 0
	for _, file := range files {
		data, err := fs.ReadFile(target.Seeds, file.Name())
		if err != nil {
			continue
		}
		p, err := target.Deserialize(data, prog.Strict)
		if err != nil {
			continue
		}
		if n := len(p.UsedOps()); n > bestOps && len(p.Calls) <= 30 {
			best, bestOps = string(p.Serialize()), n
		}
	}
	return best
}
