// Package config ingests the options of §6 (mon_addrs, name, fsid,
// class_dir, log_level, noop_write) from an INI-style file via
// gopkg.in/ini.v1, grounded on the teacher's EDS-parsing use of the same
// library (samsamfire-gocanopen's od_parser.go loads an INI file and reads
// section keys by name). flag-based overrides at the cmd/osd-mem entrypoint
// take precedence, mirroring the teacher's flag-first CLI.
package config

import (
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/behrlich/go-osd/internal/oerr"
)

// Options is the immutable configuration struct passed into
// create_osd_server (§9: "expose configuration as an immutable struct...
// no process-wide state in the core").
type Options struct {
	MonAddrs  []string
	OSDID     uint32
	FSID      string
	ClassDir  string
	LogLevel  int
	NoopWrite bool
}

// Load reads an INI file at path under an "[osd]" section.
func Load(path string) (*Options, error) {
	const op = "config.Load"

	f, err := ini.Load(path)
	if err != nil {
		return nil, oerr.Wrap(op, oerr.InvalidArgument, err)
	}
	return fromFile(f)
}

func fromFile(f *ini.File) (*Options, error) {
	const op = "config.Load"
	sec := f.Section("osd")

	monAddrsRaw := sec.Key("mon_addrs").String()
	if monAddrsRaw == "" {
		return nil, oerr.New(op, oerr.InvalidArgument, "mon_addrs is required")
	}
	var monAddrs []string
	for _, a := range strings.Split(monAddrsRaw, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			monAddrs = append(monAddrs, a)
		}
	}

	name := sec.Key("name").String()
	if name == "" {
		return nil, oerr.New(op, oerr.InvalidArgument, "name is required")
	}
	osdID, err := strconv.ParseUint(name, 10, 32)
	if err != nil {
		return nil, oerr.Wrap(op, oerr.InvalidArgument, err)
	}

	logLevel, _ := strconv.Atoi(sec.Key("log_level").MustString("1"))

	return &Options{
		MonAddrs:  monAddrs,
		OSDID:     uint32(osdID),
		FSID:      sec.Key("fsid").String(),
		ClassDir:  sec.Key("class_dir").String(),
		LogLevel:  logLevel,
		NoopWrite: sec.Key("noop_write").MustBool(false),
	}, nil
}

// ApplyOverrides mutates opts in place: each non-empty string argument
// replaces its field, and logLevel/noopWrite replace theirs only when
// logLevelSet/noopWriteSet is true, matching flag-wins-over-file precedence
// (§10).
func (o *Options) ApplyOverrides(monAddrs, name, fsid, classDir string, logLevel int, logLevelSet bool, noopWrite bool, noopWriteSet bool) {
	if monAddrs != "" {
		o.MonAddrs = strings.Split(monAddrs, ",")
	}
	if name != "" {
		if id, err := strconv.ParseUint(name, 10, 32); err == nil {
			o.OSDID = uint32(id)
		}
	}
	if fsid != "" {
		o.FSID = fsid
	}
	if classDir != "" {
		o.ClassDir = classDir
	}
	if logLevelSet {
		o.LogLevel = logLevel
	}
	if noopWriteSet {
		o.NoopWrite = noopWrite
	}
}
