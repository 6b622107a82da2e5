// Package fssink implements a stream.TopEndSink that durably persists
// committed blocks as files under a root directory of an afero.Fs,
// allowing the same code path to target a real filesystem or an in-memory
// one in tests.
package fssink

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"go.exportstream.dev/core/internal/codecs"
	"go.exportstream.dev/core/stream"
)

// Sink persists every non-empty block under root/<signature>/partition-NNNNN/,
// one file per block, named so that lexical order matches USO order.
// Pure end-of-stream markers (block == nil) are logged but not written,
// since there are no bytes to persist.
type Sink struct {
	fs    afero.Fs
	root  string
	codec codecs.Codec
	log   *logrus.Entry
}

// New returns a Sink rooted at root within fs, writing blocks uncompressed.
// fs is typically afero.NewOsFs() in production and afero.NewMemMapFs() in
// tests.
func New(fs afero.Fs, root string) *Sink {
	return &Sink{fs: fs, root: root, codec: codecs.CodecNone}
}

// NewWithCodec returns a Sink that compresses every persisted block under
// the named codec before writing it.
func NewWithCodec(fs afero.Fs, root string, codec codecs.Codec) *Sink {
	return &Sink{fs: fs, root: root, codec: codec}
}

// SetLogger attaches a structured logger describing every push; nil
// disables logging.
func (s *Sink) SetLogger(log *logrus.Entry) { s.log = log }

// PushExportBuffer implements stream.TopEndSink.
func (s *Sink) PushExportBuffer(generationID int64, partitionID int32, signature string, block *stream.StreamBlock, sync bool, endOfStream bool) error {
	if block == nil {
		if s.log != nil {
			s.log.WithFields(logrus.Fields{
				"generation": generationID,
				"partition":  partitionID,
				"signature":  signature,
			}).Debug("end-of-stream marker")
		}
		return nil
	}

	var dir = filepath.Join(s.root, signature, fmt.Sprintf("partition-%05d", partitionID))
	if err := s.fs.MkdirAll(dir, 0750); err != nil {
		return errors.Wrap(err, "creating export directory")
	}

	var payload, err = codecs.Compress(block.Bytes(), s.codec)
	if err != nil {
		return errors.Wrap(err, "compressing export block")
	}

	var name = fmt.Sprintf("gen-%020d-base-%020d.block%s", generationID, block.BaseUSO(), codecs.Extension(s.codec))
	var path = filepath.Join(dir, name)
	var tmp = filepath.Join(dir, ".partial-"+name)

	f, createErr := s.fs.Create(tmp)
	if createErr != nil {
		return errors.Wrap(createErr, "creating temp export file")
	}
	if _, err = f.Write(payload); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(tmp)
		return errors.Wrap(err, "writing export block")
	}
	if err = f.Close(); err != nil {
		return errors.Wrap(err, "closing export file")
	}
	if err = s.fs.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "renaming export file into place")
	}

	if s.log != nil {
		s.log.WithFields(logrus.Fields{
			"generation": generationID,
			"partition":  partitionID,
			"path":       path,
			"bytes":      len(block.Bytes()),
		}).Debug("persisted export block")
	}
	return nil
}
