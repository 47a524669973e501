package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ChangeKind mirrors the Firestore document change kinds on the watch stream.
type ChangeKind int

const (
	// ChangeKindAdded marks a document seen for the first time by the listener.
	ChangeKindAdded ChangeKind = iota
	// ChangeKindModified marks a document whose contents changed.
	ChangeKindModified
	// ChangeKindRemoved marks a deleted document.
	ChangeKindRemoved
)

// Change is a single document mutation observed on a snapshot listener.
type Change struct {
	Kind     ChangeKind
	Snapshot *firestore.DocumentSnapshot
}

// ChangeHandler receives document changes from a watch stream. Handlers must
// be non-blocking; long work belongs on a queue drained elsewhere.
type ChangeHandler func(ctx context.Context, change Change)

// StopFunc tears down a watch stream and releases its resources.
type StopFunc func()

// Watch installs a snapshot listener on the query and invokes handler for each
// document change until the returned StopFunc is called or ctx is cancelled.
// The first snapshot delivers every matching document as ChangeKindAdded;
// callers that only want live mutations can skip changes until after the
// initial snapshot using the skipInitial flag.
func Watch(ctx context.Context, query firestore.Query, skipInitial bool, handler ChangeHandler, onError func(error)) StopFunc {
	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		iter := query.Snapshots(watchCtx)
		defer iter.Stop()

		initial := skipInitial
		for {
			snap, err := iter.Next()
			if err != nil {
				if isWatchShutdown(watchCtx, err) {
					return
				}
				if onError != nil {
					onError(WrapError("watch", err))
				}
				return
			}
			if initial {
				initial = false
				continue
			}
			for _, docChange := range snap.Changes {
				change := Change{Snapshot: docChange.Doc}
				switch docChange.Kind {
				case firestore.DocumentAdded:
					change.Kind = ChangeKindAdded
				case firestore.DocumentModified:
					change.Kind = ChangeKindModified
				case firestore.DocumentRemoved:
					change.Kind = ChangeKindRemoved
				default:
					continue
				}
				handler(watchCtx, change)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func isWatchShutdown(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return status.Code(err) == codes.Canceled
}
