package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/google/uuid"
)

var ErrNoFiles = errors.New("no files pending upload")

type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
)

// OpenFunc opens the content of a queued file. It is called once per attempt.
type OpenFunc func() (io.ReadCloser, error)

type File struct {
	ID       string
	Name     string
	Size     int64
	Uploaded int64
	Status   Status
	Err      error

	open OpenFunc
}

// Uploader receives the content of one file.
type Uploader interface {
	Upload(ctx context.Context, name string, size int64, r io.Reader) error
}

type UploaderFunc func(ctx context.Context, name string, size int64, r io.Reader) error

func (f UploaderFunc) Upload(ctx context.Context, name string, size int64, r io.Reader) error {
	return f(ctx, name, size, r)
}

// Tracker queues files and tracks per-file and overall upload progress.
type Tracker struct {
	mutex sync.Mutex
	files []*File
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Add queues a file and returns a snapshot of it.
func (t *Tracker) Add(name string, size int64, open OpenFunc) File {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	f := &File{
		ID:     uuid.NewString(),
		Name:   name,
		Size:   size,
		Status: StatusPending,
		open:   open,
	}
	t.files = append(t.files, f)
	return *f
}

// UploadAll uploads every pending file in order. A failed file does not stop
// the others; all failures are returned joined.
func (t *Tracker) UploadAll(ctx context.Context, uploader Uploader) error {
	pending := t.pending()
	if len(pending) == 0 {
		return ErrNoFiles
	}

	var errs []error
	for _, f := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if err := t.upload(ctx, uploader, f); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (t *Tracker) upload(ctx context.Context, uploader Uploader, f *File) error {
	t.setStatus(f, StatusUploading, nil)

	rc, err := f.open()
	if err != nil {
		t.setStatus(f, StatusFailed, err)
		return err
	}
	defer rc.Close()

	err = uploader.Upload(ctx, f.Name, f.Size, &countingReader{reader: rc, tracker: t, file: f})
	if err != nil {
		t.setStatus(f, StatusFailed, err)
		return err
	}

	t.mutex.Lock()
	f.Status = StatusDone
	f.Err = nil
	if f.Uploaded < f.Size {
		f.Uploaded = f.Size
	}
	t.mutex.Unlock()
	return nil
}

// Progress returns the overall completion in percent.
func (t *Tracker) Progress() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if len(t.files) == 0 {
		return 0
	}

	var total, uploaded int64
	done := 0
	for _, f := range t.files {
		total += f.Size
		uploaded += min(f.Uploaded, f.Size)
		if f.Status == StatusDone {
			done++
		}
	}
	if total == 0 {
		return done * 100 / len(t.files)
	}
	return int(uploaded * 100 / total)
}

func (t *Tracker) Files() []File {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	out := make([]File, len(t.files))
	for i, f := range t.files {
		out[i] = *f
	}
	return out
}

func (t *Tracker) Remove(id string) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	i := slices.IndexFunc(t.files, func(f *File) bool {
		return f.ID == id
	})
	if i < 0 {
		return false
	}
	t.files = slices.Delete(t.files, i, i+1)
	return true
}

func (t *Tracker) Reset() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.files = nil
}

func (t *Tracker) pending() []*File {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	var out []*File
	for _, f := range t.files {
		if f.Status == StatusPending {
			out = append(out, f)
		}
	}
	return out
}

func (t *Tracker) setStatus(f *File, status Status, err error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	f.Status = status
	f.Err = err
}

type countingReader struct {
	reader  io.Reader
	tracker *Tracker
	file    *File
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.tracker.mutex.Lock()
		r.file.Uploaded += int64(n)
		r.tracker.mutex.Unlock()
	}
	return n, err
}
