package storage

import "io"

// Storage holds uploaded videos until their frames have been extracted.
// Path exposes a local filesystem location because the ffmpeg subprocesses
// operate on files, not streams.
type Storage interface {
	SaveVideo(r io.Reader, originalName string) (filename string, err error)
	Path(filename string) (string, error)
	OpenVideo(filename string) (io.ReadSeekCloser, error)
	DeleteVideo(filename string) error
}
