// Package pipeline submits the edited graph with sample images to the
// executor and hands the result archive to the user.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/chive/backend/pkg/editor"
	"github.com/chive/backend/pkg/logger"
)

// FailureMessage is shown to the user for every failed submission.
const FailureMessage = "Upload failed. Please try again."

var (
	ErrNoAssets = errors.New("no images selected")
	ErrUnsaved  = errors.New("project has not been saved yet")
	ErrBusy     = errors.New("a submission is already running")
)

// SubmitError is a failed submission. Error returns the user-facing message;
// the transport error is available through Unwrap.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string { return e.Message }
func (e *SubmitError) Unwrap() error { return e.Err }

// Executor runs a pipeline request for a saved project and returns the
// result archive.
type Executor interface {
	RunPipeline(ctx context.Context, projectID int64, contentType string, body []byte) ([]byte, error)
}

// Downloader hands a result archive to the user and returns where it went.
type Downloader interface {
	Download(name string, data []byte) (string, error)
}

// DirDownloader writes archives into a directory.
type DirDownloader struct {
	Dir string
}

func (d DirDownloader) Download(name string, data []byte) (string, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(d.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Dialog is the submission dialog of one editing session: the images the
// user picked and whether the dialog is showing.
type Dialog struct {
	store      *editor.Store
	executor   Executor
	downloader Downloader
	clock      clockwork.Clock

	mu     sync.Mutex
	open   bool
	busy   bool
	assets []Asset
	// cleared counts Cancel calls, so a finishing Submit knows whether the
	// assets it sent are still at the front of the selection.
	cleared uint64
}

type Option func(*Dialog)

func WithClock(clock clockwork.Clock) Option {
	return func(d *Dialog) { d.clock = clock }
}

func NewDialog(store *editor.Store, executor Executor, downloader Downloader, opts ...Option) *Dialog {
	d := &Dialog{
		store:      store,
		executor:   executor,
		downloader: downloader,
		clock:      clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dialog) Open() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = true
}

// Close hides the dialog and keeps the selection.
func (d *Dialog) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
}

// Cancel hides the dialog and drops the selection.
func (d *Dialog) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.assets = nil
	d.cleared++
}

func (d *Dialog) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Add selects the image assets among candidates and returns how many were
// accepted. Anything that is not an image is dropped.
func (d *Dialog) Add(candidates ...Asset) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, a := range candidates {
		if !IsImage(a.MediaType) {
			logger.Debug("Skipping non-image asset", "name", a.Name, "type", a.MediaType)
			continue
		}
		d.assets = append(d.assets, a)
		n++
	}
	return n
}

func (d *Dialog) Assets() []Asset {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.assets)
}

// Submit sends the current graph and the selected images to the executor
// and downloads the archive it returns. On success the submitted images are
// removed from the selection and the dialog closes; images added while the
// request was running stay selected. On failure both are kept and the error
// is a *SubmitError, unless it was rejected before anything was sent.
func (d *Dialog) Submit(ctx context.Context) (string, error) {
	d.mu.Lock()
	if d.busy {
		d.mu.Unlock()
		return "", ErrBusy
	}
	if len(d.assets) == 0 {
		d.mu.Unlock()
		return "", ErrNoAssets
	}
	snap := d.store.Snapshot()
	if !snap.Project.Saved() {
		d.mu.Unlock()
		return "", ErrUnsaved
	}
	d.busy = true
	assets := slices.Clone(d.assets)
	cleared := d.cleared
	d.mu.Unlock()

	path, err := d.run(ctx, snap, assets)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.busy = false
	if err != nil {
		logger.Error("Failed to run pipeline", "project", snap.Project.ID, "images", len(assets), "err", err)
		return "", &SubmitError{Message: FailureMessage, Err: err}
	}
	if d.cleared == cleared {
		d.assets = slices.Clone(d.assets[len(assets):])
	}
	d.open = false
	return path, nil
}

func (d *Dialog) run(ctx context.Context, snap editor.Snapshot, assets []Asset) (string, error) {
	var body bytes.Buffer
	contentType, err := Encode(&body, snap.Graph, assets)
	if err != nil {
		return "", err
	}
	archive, err := d.executor.RunPipeline(ctx, snap.Project.ID, contentType, body.Bytes())
	if err != nil {
		return "", err
	}
	return d.downloader.Download(ArchiveName(d.clock.Now()), archive)
}
