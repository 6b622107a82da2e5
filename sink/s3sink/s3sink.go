// Package s3sink implements a stream.TopEndSink that uploads committed
// blocks to an S3-compatible object store.
package s3sink

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"go.exportstream.dev/core/stream"
)

// Config configures a Sink's target bucket and object layout.
type Config struct {
	Bucket string
	Prefix string
	// ACL applied when uploading new objects; empty uses the bucket default.
	ACL string
	// StorageClass applied when uploading new objects; empty uses the S3
	// default storage class.
	StorageClass string
}

// Sink uploads committed blocks to S3, one object per block, under
// Config.Prefix/<signature>/partition-NNNNN/. Pure end-of-stream markers
// carry no bytes and are never uploaded.
type Sink struct {
	cfg    Config
	client *s3.S3
	log    *logrus.Entry
}

// New returns a Sink using sess for S3 requests.
func New(sess *session.Session, cfg Config) *Sink {
	return &Sink{cfg: cfg, client: s3.New(sess)}
}

// SetLogger attaches a structured logger describing every upload; nil
// disables logging.
func (s *Sink) SetLogger(log *logrus.Entry) { s.log = log }

func objectKey(prefix, signature string, partitionID int32, generationID, baseUSO int64) string {
	return fmt.Sprintf("%s%s/partition-%05d/gen-%020d-base-%020d.block",
		prefix, signature, partitionID, generationID, baseUSO)
}

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

	var key = objectKey(s.cfg.Prefix, signature, partitionID, generationID, block.BaseUSO())

	var putObj = s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(block.Bytes()),
	}
	if s.cfg.ACL != "" {
		putObj.ACL = aws.String(s.cfg.ACL)
	}
	if s.cfg.StorageClass != "" {
		putObj.StorageClass = aws.String(s.cfg.StorageClass)
	}

	var _, err = s.client.PutObjectWithContext(context.Background(), &putObj)
	if err != nil {
		return errors.Wrapf(err, "uploading export block to s3://%s/%s", s.cfg.Bucket, key)
	}
	if s.log != nil {
		s.log.WithFields(logrus.Fields{
			"bucket": s.cfg.Bucket,
			"key":    key,
			"bytes":  len(block.Bytes()),
		}).Debug("uploaded export block")
	}
	return nil
}
