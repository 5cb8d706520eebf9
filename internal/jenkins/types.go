// Package jenkins reads the job hierarchy of a Jenkins server through its JSON API.
package jenkins

import "git.home.luguber.info/inful/buildwatch/internal/foundation"

// Container is anything holding child jobs: the server overview, a folder or a
// multibranch project.
type Container interface {
	Children() []JobSummary
}

// JobSummary is the short job entry listed by a container.
type JobSummary struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Color string `json:"color,omitempty"`
}

// Overview is the server root document.
type Overview struct {
	Mode            string       `json:"mode,omitempty"`
	NodeName        string       `json:"nodeName,omitempty"`
	NodeDescription string       `json:"nodeDescription,omitempty"`
	Description     string       `json:"description,omitempty"`
	NumExecutors    int          `json:"numExecutors,omitempty"`
	UseSecurity     bool         `json:"useSecurity,omitempty"`
	Jobs            []JobSummary `json:"jobs"`

	// Version comes from the X-Jenkins response header, not the body.
	Version string `json:"-"`
}

func (o *Overview) Children() []JobSummary { return o.Jobs }

// BuildRef points at one build of a job.
type BuildRef struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// Job is the full record of one job.
type Job struct {
	Name            string       `json:"name"`
	DisplayName     string       `json:"displayName,omitempty"`
	URL             string       `json:"url"`
	Color           string       `json:"color,omitempty"`
	Buildable       *bool        `json:"buildable,omitempty"`
	NextBuildNumber int          `json:"nextBuildNumber,omitempty"`
	Jobs            []JobSummary `json:"jobs,omitempty"`
	LastBuildRef    *BuildRef    `json:"lastBuild"`
}

func (j *Job) Children() []JobSummary { return j.Jobs }

// LastBuild returns the most recent build, if the job has any.
func (j *Job) LastBuild() foundation.Option[BuildRef] {
	return foundation.FromPointer(j.LastBuildRef)
}

// Person is a user referenced by a build.
type Person struct {
	FullName    *string `json:"fullName"`
	AbsoluteURL string  `json:"absoluteUrl,omitempty"`
}

// Name returns the display name, if Jenkins reported one.
func (p Person) Name() foundation.Option[string] {
	return foundation.FromPointer(p.FullName)
}

// Build is the full record of one build.
type Build struct {
	Number    int      `json:"number"`
	URL       string   `json:"url"`
	Building  bool     `json:"building"`
	ResultRaw *string  `json:"result"`
	Duration  int64    `json:"duration,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"`
	Culprits  []Person `json:"culprits"`
}

// Result returns the build outcome; running builds and some aborted ones have none.
func (b *Build) Result() foundation.Option[string] {
	return foundation.FromPointer(b.ResultRaw)
}
