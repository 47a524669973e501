package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
)

// BatchWrite is one pending mutation inside a bulk commit.
type BatchWrite struct {
	Ref     *firestore.DocumentRef
	Data    any
	Updates []firestore.Update
	Delete  bool
}

// CommitBatch flushes the writes through a BulkWriter. Individual write
// failures are collected rather than aborting the remaining writes, matching
// the pipeline's partial-failure tolerance.
func CommitBatch(ctx context.Context, client *firestore.Client, writes []BatchWrite) []error {
	if client == nil {
		return []error{WrapError("batch", errors.New("firestore: client is nil"))}
	}
	if len(writes) == 0 {
		return nil
	}

	bw := client.BulkWriter(ctx)

	type pending struct {
		job *firestore.BulkWriterJob
		err error
	}
	jobs := make([]pending, 0, len(writes))

	for _, write := range writes {
		if write.Ref == nil {
			jobs = append(jobs, pending{err: WrapError("batch", errors.New("firestore: document ref is nil"))})
			continue
		}
		var (
			job *firestore.BulkWriterJob
			err error
		)
		switch {
		case write.Delete:
			job, err = bw.Delete(write.Ref)
		case len(write.Updates) > 0:
			job, err = bw.Update(write.Ref, write.Updates)
		default:
			job, err = bw.Set(write.Ref, write.Data)
		}
		if err != nil {
			jobs = append(jobs, pending{err: WrapError("batch", err)})
			continue
		}
		jobs = append(jobs, pending{job: job})
	}

	bw.End()

	var failures []error
	for _, j := range jobs {
		if j.err != nil {
			failures = append(failures, j.err)
			continue
		}
		if _, err := j.job.Results(); err != nil {
			failures = append(failures, WrapError("batch", err))
		}
	}
	return failures
}
