// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session writes received recording sessions to CSV, one file per
// start/stop pair.
package session

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/swingsense/internal/logging"
	"github.com/relabs-tech/swingsense/internal/wire"
)

// Columns is the CSV header row.
var Columns = []string{"seq", "ax", "ay", "az", "gx", "gy", "gz"}

// Info describes a finished or open session.
type Info struct {
	ID   uuid.UUID
	Path string
	Rows int
}

// Recorder consumes decoded frames. It is not safe for concurrent use.
type Recorder struct {
	dir   string
	newID func() uuid.UUID
	log   *logrus.Entry

	file    *os.File
	w       *csv.Writer
	current Info
	done    []Info
	dropped int
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithIDs replaces uuid.New, mainly for tests.
func WithIDs(f func() uuid.UUID) Option { return func(r *Recorder) { r.newID = f } }

// NewRecorder writes sessions under dir, creating it if needed.
func NewRecorder(dir string, opts ...Option) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session: create %s: %w", dir, err)
	}
	r := &Recorder{dir: dir, newID: uuid.New, log: logging.For("session")}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Active reports whether a session file is open.
func (r *Recorder) Active() bool { return r.file != nil }

// Current returns the open session, if any.
func (r *Recorder) Current() (Info, bool) { return r.current, r.file != nil }

// Sessions returns the closed sessions in order.
func (r *Recorder) Sessions() []Info { return append([]Info(nil), r.done...) }

// Dropped counts data frames that arrived outside a session.
func (r *Recorder) Dropped() int { return r.dropped }

// Handle applies one frame. A start header while a session is open closes
// it first, which happens when a stop header was lost in transit.
func (r *Recorder) Handle(f wire.Frame) error {
	switch f.Kind {
	case wire.KindHeader:
		if !f.Recording {
			return r.finish()
		}
		if r.Active() {
			r.log.WithField("session", r.current.ID).Warn("start without stop, closing previous session")
			if err := r.finish(); err != nil {
				return err
			}
		}
		return r.start()
	case wire.KindData:
		if !r.Active() {
			r.dropped++
			return nil
		}
		return r.append(f)
	}
	return nil
}

func (r *Recorder) start() error {
	id := r.newID()
	path := filepath.Join(r.dir, id.String()+".csv")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("session: create %s: %w", path, err)
	}
	w := csv.NewWriter(file)
	if err := w.Write(Columns); err != nil {
		file.Close()
		return fmt.Errorf("session: write header: %w", err)
	}
	r.file, r.w = file, w
	r.current = Info{ID: id, Path: path}
	r.log.WithFields(logrus.Fields{"session": id, "path": path}).Info("session started")
	return nil
}

func (r *Recorder) append(f wire.Frame) error {
	v := f.Sample.Values()
	row := make([]string, 0, len(Columns))
	row = append(row, strconv.Itoa(r.current.Rows))
	for _, x := range v {
		row = append(row, strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	if err := r.w.Write(row); err != nil {
		return fmt.Errorf("session: write row: %w", err)
	}
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return fmt.Errorf("session: flush: %w", err)
	}
	r.current.Rows++
	return nil
}

func (r *Recorder) finish() error {
	if !r.Active() {
		return nil
	}
	r.w.Flush()
	werr := r.w.Error()
	cerr := r.file.Close()

	info := r.current
	r.file, r.w, r.current = nil, nil, Info{}
	r.done = append(r.done, info)
	r.log.WithFields(logrus.Fields{"session": info.ID, "rows": info.Rows}).Info("session saved")

	if werr != nil {
		return fmt.Errorf("session: flush: %w", werr)
	}
	if cerr != nil {
		return fmt.Errorf("session: close: %w", cerr)
	}
	return nil
}

// Close saves any open session.
func (r *Recorder) Close() error { return r.finish() }
