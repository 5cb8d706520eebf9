package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"git.home.luguber.info/inful/buildwatch/internal/jenkins"
	"git.home.luguber.info/inful/buildwatch/internal/state"
)

const fakeBase = "http://ci.test"

// fakeReader serves an in-memory job tree addressed the way Jenkins does.
type fakeReader struct {
	mu       sync.Mutex
	overview jenkins.Overview
	jobs     map[string]*jenkins.Job
	builds   map[string]*jenkins.Build
	fetched  []string
	failURLs map[string]error
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		jobs:     map[string]*jenkins.Job{},
		builds:   map[string]*jenkins.Build{},
		failURLs: map[string]error{},
	}
}

func jobURL(key string) string {
	return fakeBase + strings.ReplaceAll(key, "/", "/job/") + "/"
}

// addJob registers the job at key ("/A/b"); its parent must already exist.
func (f *fakeReader) addJob(key string, build *jenkins.Build) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := strings.LastIndex(key, "/")
	parent, name := key[:idx], key[idx+1:]
	summary := jenkins.JobSummary{Name: name, URL: jobURL(key)}
	if parent == "" {
		f.overview.Jobs = append(f.overview.Jobs, summary)
	} else {
		p := f.jobs[jobURL(parent)]
		p.Jobs = append(p.Jobs, summary)
	}
	f.jobs[summary.URL] = &jenkins.Job{Name: name, URL: summary.URL}
	f.setBuildLocked(key, build)
}

// setBuild replaces the last build of key; nil removes the build history.
func (f *fakeReader) setBuild(key string, build *jenkins.Build) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setBuildLocked(key, build)
}

func (f *fakeReader) setBuildLocked(key string, build *jenkins.Build) {
	job := f.jobs[jobURL(key)]
	if build == nil {
		job.LastBuildRef = nil
		return
	}
	url := fmt.Sprintf("%s%d/", job.URL, build.Number)
	job.LastBuildRef = &jenkins.BuildRef{Number: build.Number, URL: url}
	f.builds[url] = build
}

func (f *fakeReader) failOn(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failURLs[url] = err
}

func (f *fakeReader) fetchedJobs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

func (f *fakeReader) FetchOverview(context.Context) (*jenkins.Overview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failURLs[fakeBase]; err != nil {
		return nil, err
	}
	o := f.overview
	return &o, nil
}

func (f *fakeReader) FetchJob(_ context.Context, url string) (*jenkins.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failURLs[url]; err != nil {
		return nil, err
	}
	job, ok := f.jobs[url]
	if !ok {
		return nil, &jenkins.RemoteError{StatusCode: 404, URL: url, Message: "not found"}
	}
	f.fetched = append(f.fetched, url)
	j := *job
	return &j, nil
}

func (f *fakeReader) FetchBuild(_ context.Context, url string) (*jenkins.Build, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failURLs[url]; err != nil {
		return nil, err
	}
	build, ok := f.builds[url]
	if !ok {
		return nil, &jenkins.RemoteError{StatusCode: 404, URL: url, Message: "not found"}
	}
	b := *build
	return &b, nil
}

func completed(number int, result string, culprits ...string) *jenkins.Build {
	b := &jenkins.Build{Number: number}
	if result != "" {
		b.ResultRaw = &result
	}
	for _, c := range culprits {
		name := c
		b.Culprits = append(b.Culprits, jenkins.Person{FullName: &name})
	}
	return b
}

func building(number int) *jenkins.Build {
	return &jenkins.Build{Number: number, Building: true}
}

// memStore is an in-memory Store.
type memStore struct {
	mu       sync.Mutex
	snapshot state.Snapshot
	saves    int
	loadErr  error
	saveErr  error
}

func (s *memStore) Load(context.Context) (state.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.snapshot.Clone(), nil
}

func (s *memStore) Save(_ context.Context, snapshot state.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.snapshot = snapshot.Clone()
	return nil
}

func (s *memStore) Path() string { return "memory" }

// changeLog records listener invocations.
type changeLog struct {
	mu    sync.Mutex
	calls [][]ChangeRecord
}

func (c *changeLog) listen(_ context.Context, _ string, changes []ChangeRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, changes)
}

func (c *changeLog) all() [][]ChangeRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]ChangeRecord(nil), c.calls...)
}
