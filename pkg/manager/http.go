// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package manager

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/seqfuzz/seqfuzz/pkg/fuzzer"
	"github.com/seqfuzz/seqfuzz/pkg/html"
	"github.com/seqfuzz/seqfuzz/pkg/log"
	"github.com/seqfuzz/seqfuzz/pkg/mgrconfig"
	"github.com/seqfuzz/seqfuzz/pkg/seeds"
	"github.com/seqfuzz/seqfuzz/pkg/stat"
	"github.com/seqfuzz/seqfuzz/prog"
)

type HTTPServer struct {
	// To be set before calling Serve.
	Cfg       *mgrconfig.Config
	StartTime time.Time

	// Can be set dynamically after calling Serve.
	Fuzzer atomic.Pointer[fuzzer.Fuzzer]

	expertMode atomic.Bool
}

// Handler returns the web interface with gzip compression of responses.
func (serv *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, handler func(http.ResponseWriter, *http.Request)) {
		mux.Handle(pattern, handlers.CompressHandler(http.HandlerFunc(handler)))
	}
	handle("/", serv.httpMain)
	handle("/action", serv.httpAction)
	handle("/config", serv.httpConfig)
	handle("/corpus", serv.httpCorpus)
	handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}).ServeHTTP)
	handle("/prog", serv.httpProg)
	handle("/triples", serv.httpTriples)
	// Browsers like to request this, without special handler this goes to / handler.
	handle("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {})
	return mux
}

func (serv *HTTPServer) Serve(ctx context.Context) error {
	if serv.Cfg.HTTP == "" {
		return fmt.Errorf("starting a disabled HTTP server")
	}
	log.Logf(0, "serving http on http://%v", serv.Cfg.HTTP)
	server := &http.Server{Addr: serv.Cfg.HTTP, Handler: serv.Handler()}
	go func() {
		<-ctx.Done()
		server.Close()
	}()
	err := server.ListenAndServe()
	if err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (serv *HTTPServer) httpAction(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("toggle") == "expert" {
		serv.expertMode.Store(!serv.expertMode.Load())
	}
	url := r.FormValue("url")
	if url == "" {
		url = "/"
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (serv *HTTPServer) httpMain(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data := &UISummaryData{
		UIPageHeader: serv.pageHeader(r, "summary"),
		Log:          log.CachedLogOutput(),
		Uptime:       time.Since(serv.StartTime),
	}
	level := stat.Simple
	if serv.expertMode.Load() {
		level = stat.All
	}
	for _, s := range stat.Collect(level) {
		data.Stats = append(data.Stats, UIStat{
			Name:  s.Name,
			Value: s.Value,
			Hint:  s.Desc,
		})
	}
	if f := serv.Fuzzer.Load(); f != nil {
		data.Prompt = f.Prompt()
		data.QuietRound = f.QuietRound()
		data.Used, data.Total = f.Observer.Coverage()
		data.Usage = f.Usage().String()
	}
	executeTemplate(w, mainTemplate, data)
}

func (serv *HTTPServer) httpConfig(w http.ResponseWriter, r *http.Request) {
	text, err := json.MarshalIndent(serv.Cfg, "", "\t")
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to encode json: %v", err), http.StatusInternalServerError)
		return
	}
	serv.textPage(w, r, "config", "", text)
}

func (serv *HTTPServer) textPage(w http.ResponseWriter, r *http.Request, title, note string, text []byte) {
	if r.FormValue("raw") != "" {
		w.Header().Set("Content-Type", ctTextPlain)
		w.Write(text)
		return
	}
	data := &UITextPage{
		UIPageHeader: serv.pageHeader(r, title),
		Note:         note,
		Text:         text,
	}
	executeTemplate(w, textTemplate, data)
}

func storeDir(r *http.Request) (string, bool) {
	switch dir := r.FormValue("dir"); dir {
	case "", seeds.SuccDir:
		return seeds.SuccDir, true
	case seeds.ErrDir, seeds.MinDir:
		return dir, true
	}
	return "", false
}

func (serv *HTTPServer) httpCorpus(w http.ResponseWriter, r *http.Request) {
	f := serv.Fuzzer.Load()
	if f == nil {
		http.Error(w, "generation has not started yet", http.StatusServiceUnavailable)
		return
	}
	dir, ok := storeDir(r)
	if !ok {
		http.Error(w, "unknown corpus dir", http.StatusBadRequest)
		return
	}
	data := &UICorpusPage{
		UIPageHeader: serv.pageHeader(r, "corpus"),
		Dir:          dir,
	}
	metas := make(map[int]seeds.Meta)
	for _, meta := range f.Store.Metas() {
		metas[meta.ID] = meta
	}
	ids, err := f.Store.IDs(dir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, id := range ids {
		text, _, err := f.Store.Read(dir, id)
		if err != nil {
			continue
		}
		inp := UIInput{
			Name:  seeds.FileName(id),
			Link:  fmt.Sprintf("/prog?dir=%v&id=%v", dir, id),
			Short: "unparsable",
		}
		if meta, ok := metas[id]; ok {
			inp.Time = time.Unix(meta.Time, 0)
			inp.RunID = meta.RunID
		}
		if p, err := f.Store.Target.Deserialize(text, prog.NonStrict); err == nil {
			inp.Short = shortCalls(p.OpNames())
		}
		data.Inputs = append(data.Inputs, inp)
	}
	// Newest first.
	sort.SliceStable(data.Inputs, func(i, j int) bool {
		return data.Inputs[i].Name > data.Inputs[j].Name
	})
	executeTemplate(w, corpusTemplate, data)
}

func (serv *HTTPServer) httpProg(w http.ResponseWriter, r *http.Request) {
	f := serv.Fuzzer.Load()
	if f == nil {
		http.Error(w, "generation has not started yet", http.StatusServiceUnavailable)
		return
	}
	dir, ok := storeDir(r)
	id, err := strconv.Atoi(r.FormValue("id"))
	if !ok || err != nil || id < 0 {
		http.Error(w, "bad program id", http.StatusBadRequest)
		return
	}
	text, reason, err := f.Store.Read(dir, id)
	if err != nil {
		http.Error(w, "no such program", http.StatusNotFound)
		return
	}
	serv.textPage(w, r, seeds.FileName(id), reason, text)
}

func (serv *HTTPServer) httpTriples(w http.ResponseWriter, r *http.Request) {
	f := serv.Fuzzer.Load()
	if f == nil {
		http.Error(w, "generation has not started yet", http.StatusServiceUnavailable)
		return
	}
	data := &UITriplesPage{
		UIPageHeader: serv.pageHeader(r, "triples"),
	}
	uses := f.Observer.Uses()
	maxUses := 1
	for _, n := range uses {
		maxUses = max(maxUses, n)
	}
	for _, op := range f.Store.Target.Ops {
		if op.Common {
			continue
		}
		if uses[op.Name] != 0 {
			data.Used++
		}
		data.Ops = append(data.Ops, UIOp{
			Name:   op.Name,
			Uses:   uses[op.Name],
			Energy: f.Schedule.Energy(op.Name),
			Heat:   html.Heat(float64(uses[op.Name]) / float64(maxUses)),
		})
	}
	for _, t := range f.Observer.Triples() {
		data.Triples = append(data.Triples, t.String())
	}
	executeTemplate(w, triplesTemplate, data)
}

func shortCalls(names []string) string {
	const maxCalls = 8
	if len(names) > maxCalls {
		return strings.Join(names[:maxCalls], " ") + fmt.Sprintf(" ... (%v calls)", len(names))
	}
	return strings.Join(names, " ")
}

const ctTextPlain = "text/plain; charset=utf-8"

func executeTemplate(w http.ResponseWriter, templ *template.Template, data any) {
	buf := new(bytes.Buffer)
	if err := templ.Execute(buf, data); err != nil {
		log.Logf(0, "failed to execute template: %v", err)
		http.Error(w, fmt.Sprintf("failed to execute template: %v", err), http.StatusInternalServerError)
		return
	}
	w.Write(buf.Bytes())
}

type UISummaryData struct {
	UIPageHeader
	Stats      []UIStat
	Prompt     string
	QuietRound int
	Used       int
	Total      int
	Usage      string
	Uptime     time.Duration
	Log        string
}

type UIStat struct {
	Name  string
	Value string
	Hint  string
}

type UICorpusPage struct {
	UIPageHeader
	Dir    string
	Inputs []UIInput
}

type UIInput struct {
	Name  string
	Link  string
	Time  time.Time
	RunID string
	Short string
}

type UITriplesPage struct {
	UIPageHeader
	Used    int
	Ops     []UIOp
	Triples []string
}

type UIOp struct {
	Name   string
	Uses   int
	Energy float64
	Heat   template.CSS
}

type UITextPage struct {
	UIPageHeader
	Note string
	Text []byte
}

type UIPageHeader struct {
	Name      string
	PageTitle string
	// Relative page URL with GET parameters (e.g. "/prog?id=1").
	CurrentURL string
	ExpertMode bool
}

func (serv *HTTPServer) pageHeader(r *http.Request, title string) UIPageHeader {
	url := *r.URL
	url.Scheme = ""
	url.Host = ""
	url.User = nil
	return UIPageHeader{
		Name:       serv.Cfg.Name,
		PageTitle:  title,
		CurrentURL: url.String(),
		ExpertMode: serv.expertMode.Load(),
	}
}

func createPage(name string, data any) *template.Template {
	templ := html.Create(fmt.Sprintf(string(mustReadHTML("common")), mustReadHTML(name)))
	templTypes = append(templTypes, templType{
		templ: templ,
		data:  data,
	})
	return templ
}

type templType struct {
	templ *template.Template
	data  any
}

var templTypes []templType

var (
	mainTemplate    = createPage("main", UISummaryData{})
	corpusTemplate  = createPage("corpus", UICorpusPage{})
	triplesTemplate = createPage("triples", UITriplesPage{})
	textTemplate    = createPage("text", UITextPage{})
)

//go:embed html/*.html
var htmlFiles embed.FS

func mustReadHTML(name string) []byte {
	data, err := htmlFiles.ReadFile("html/" + name + ".html")
	if err != nil {
		panic(err)
	}
	return data
}
