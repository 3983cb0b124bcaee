// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package seeds manages the on-disk state of a generation session:
//
//	<workdir>/<target>/succ/id_NNNNNN      validated programs
//	<workdir>/<target>/err/id_NNNNNN[.err] rejected programs and the reason
//	<workdir>/<target>/pairs/id_NNNNNN     call triples of validated programs
//	<workdir>/<target>/min/                minimized corpus
//	<workdir>/<target>/misc/               prompt state and seed metadata
//	<workdir>/<target>/corpus.db           validated programs in the corpus database format
package seeds

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/seqfuzz/seqfuzz/pkg/db"
	"github.com/seqfuzz/seqfuzz/pkg/hash"
	"github.com/seqfuzz/seqfuzz/pkg/log"
	"github.com/seqfuzz/seqfuzz/pkg/osutil"
	"github.com/seqfuzz/seqfuzz/pkg/stat"
	"github.com/seqfuzz/seqfuzz/prog"
)

const (
	SuccDir   = "succ"
	ErrDir    = "err"
	PairsDir  = "pairs"
	MinDir    = "min"
	MiscDir   = "misc"
	CorpusDB  = "corpus.db"
	metaFile  = "seed_meta.json"
	idPrefix  = "id_"
	errSuffix = ".err"
)

type Meta struct {
	ID    int    `json:"id"`
	Path  string `json:"path"`
	Time  int64  `json:"time"`
	RunID string `json:"run_id"`
}

type Seed struct {
	ID   int
	Path string
	Prog *prog.Prog
}

type Store struct {
	Dir    string
	Target *prog.Target
	RunID  string

	mu     sync.Mutex
	nextID int
	metas  []Meta
	corpus *db.DB
	start  time.Time

	statSucc *stat.Val
	statErr  *stat.Val
}

// Open creates the directory layout (if needed) and restores the seed id counter
// and metadata of previous sessions.
func Open(dir string, target *prog.Target) (*Store, error) {
	s := &Store{
		Dir:    dir,
		Target: target,
		RunID:  uuid.New().String(),
		start:  time.Now(),
		statSucc: stat.New("succ programs", "Validated programs saved in the corpus",
			stat.Simple, stat.Prometheus("seqfuzz_succ_programs")),
		statErr: stat.New("err programs", "Programs rejected by validation",
			stat.Simple, stat.Prometheus("seqfuzz_err_programs")),
	}
	for _, sub := range []string{SuccDir, ErrDir, PairsDir, MinDir, MiscDir} {
		if err := osutil.MkdirAll(filepath.Join(dir, sub)); err != nil {
			return nil, fmt.Errorf("failed to create %v: %w", sub, err)
		}
	}
	for _, sub := range []string{SuccDir, ErrDir} {
		ids, err := s.IDs(sub)
		if err != nil {
			return nil, err
		}
		if len(ids) != 0 && ids[len(ids)-1] >= s.nextID {
			s.nextID = ids[len(ids)-1] + 1
		}
	}
	if data, err := os.ReadFile(filepath.Join(dir, MiscDir, metaFile)); err == nil {
		if err := json.Unmarshal(data, &s.metas); err != nil {
			return nil, fmt.Errorf("failed to parse %v: %w", metaFile, err)
		}
	}
	var err error
	if s.corpus, err = db.Open(filepath.Join(dir, CorpusDB)); err != nil {
		return nil, fmt.Errorf("failed to open corpus database: %w", err)
	}
	log.Logf(0, "seed store %v: next id %v, run %v", dir, s.nextID, s.RunID)
	return s, nil
}

func FileName(id int) string {
	return fmt.Sprintf("%v%06d", idPrefix, id)
}

func parseID(name string) (int, bool) {
	if !strings.HasPrefix(name, idPrefix) || strings.Contains(name, ".") {
		return 0, false
	}
	id, err := strconv.Atoi(name[len(idPrefix):])
	return id, err == nil
}

// IDs returns the sorted ids of programs saved in sub.
func (s *Store) IDs(sub string) ([]int, error) {
	names, err := osutil.ListDir(filepath.Join(s.Dir, sub))
	if err != nil {
		return nil, err
	}
	var ids []int
	for _, name := range names {
		if id, ok := parseID(name); ok {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// NextID reserves a new seed id.
func (s *Store) NextID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	return id
}

func (s *Store) Path(sub string, id int) string {
	return filepath.Join(s.Dir, sub, FileName(id))
}

func (s *Store) SubDir(sub string) string {
	return filepath.Join(s.Dir, sub)
}

// SaveSucc stores a validated program and returns its path.
func (s *Store) SaveSucc(id int, p *prog.Prog) (string, error) {
	data := p.Serialize()
	path := s.Path(SuccDir, id)
	if err := osutil.WriteFile(path, data); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.corpus.Save(hash.String(data), data, uint64(id))
	s.metas = append(s.metas, Meta{ID: id, Path: path, Time: time.Now().Unix(), RunID: s.RunID})
	s.mu.Unlock()
	s.statSucc.Add(1)
	return path, nil
}

// SaveErr stores a rejected model reply together with the reason it was rejected.
func (s *Store) SaveErr(id int, text []byte, reason string) error {
	path := s.Path(ErrDir, id)
	if err := osutil.WriteFile(path, text); err != nil {
		return err
	}
	s.statErr.Add(1)
	return osutil.WriteFile(path+errSuffix, []byte(reason))
}

// Read returns the text of a saved program and the reason it was rejected (for ErrDir).
func (s *Store) Read(sub string, id int) ([]byte, string, error) {
	path := s.Path(sub, id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	reason, _ := os.ReadFile(path + errSuffix)
	return data, string(reason), nil
}

func (s *Store) SavePairs(id int, triples []prog.Triple) error {
	buf := new(strings.Builder)
	for _, t := range triples {
		fmt.Fprintf(buf, "%v\n", t)
	}
	return osutil.WriteFile(s.Path(PairsDir, id), []byte(buf.String()))
}

// LoadPairs returns the call triples saved for all seeds.
func (s *Store) LoadPairs() (map[int][]prog.Triple, error) {
	ids, err := s.IDs(PairsDir)
	if err != nil {
		return nil, err
	}
	res := make(map[int][]prog.Triple)
	for _, id := range ids {
		data, err := os.ReadFile(s.Path(PairsDir, id))
		if err != nil {
			return nil, err
		}
		var triples []prog.Triple
		for _, line := range strings.Split(string(data), "\n") {
			if t, ok := prog.ParseTriple(line); ok {
				triples = append(triples, t)
			}
		}
		res[id] = triples
	}
	return res, nil
}

// LoadSucc parses all validated programs in id order.
func (s *Store) LoadSucc() ([]*Seed, error) {
	ids, err := s.IDs(SuccDir)
	if err != nil {
		return nil, err
	}
	var seeds []*Seed
	for _, id := range ids {
		path := s.Path(SuccDir, id)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		p, err := s.Target.Deserialize(data, prog.Strict)
		if err != nil {
			log.Errorf("broken seed %v: %v", path, err)
			continue
		}
		seeds = append(seeds, &Seed{ID: id, Path: path, Prog: p})
	}
	return seeds, nil
}

// Reject moves a validated program that fails a recheck to the error dir.
func (s *Store) Reject(seed *Seed, reason string) error {
	data := seed.Prog.Serialize()
	if err := s.SaveErr(seed.ID, data, reason); err != nil {
		return err
	}
	s.mu.Lock()
	s.corpus.Delete(hash.String(data))
	s.mu.Unlock()
	os.Remove(s.Path(PairsDir, seed.ID))
	return os.Remove(seed.Path)
}

func (s *Store) Metas() []Meta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Meta{}, s.metas...)
}

// Flush writes the seed metadata and pending corpus database records.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(s.metas, "", "\t")
	if err != nil {
		return err
	}
	if err := osutil.WriteFileAtomic(filepath.Join(s.Dir, MiscDir, metaFile), data); err != nil {
		return err
	}
	return s.corpus.Flush()
}

func (s *Store) CorpusLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.corpus.Records)
}

// Elapsed is the duration of the current session.
func (s *Store) Elapsed() time.Duration {
	return time.Since(s.start)
}
