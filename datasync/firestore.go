package datasync

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreSource streams collection snapshots from Firestore.
type FirestoreSource struct {
	client *firestore.Client
}

func NewFirestoreSource(client *firestore.Client) *FirestoreSource {
	return &FirestoreSource{client: client}
}

func (s *FirestoreSource) Ready() bool { return s != nil && s.client != nil }

func (s *FirestoreSource) Subscribe(ctx context.Context, collection string) (Stream, error) {
	if !s.Ready() {
		return nil, errors.New("datasync: firestore client not initialized")
	}
	return NewFirestoreStream(s.client.Collection(collection).Snapshots(ctx)), nil
}

// NewFirestoreStream adapts a query snapshot iterator to a Stream.
func NewFirestoreStream(it *firestore.QuerySnapshotIterator) Stream {
	return &firestoreStream{it: it}
}

type firestoreStream struct {
	it *firestore.QuerySnapshotIterator
}

func (f *firestoreStream) Next() (Snapshot, error) {
	qs, err := f.it.Next()
	if err == iterator.Done || status.Code(err) == codes.Canceled {
		return Snapshot{}, ErrStreamDone
	}
	if err != nil {
		return Snapshot{}, err
	}

	docs, err := qs.Documents.GetAll()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot documents: %w", err)
	}
	snap := Snapshot{
		Docs:     make([]Document, 0, len(docs)),
		Changes:  make([]Change, 0, len(qs.Changes)),
		ReadTime: qs.ReadTime,
	}
	for _, d := range docs {
		snap.Docs = append(snap.Docs, Document{ID: d.Ref.ID, Data: d.Data()})
	}
	for _, c := range qs.Changes {
		var kind ChangeKind
		switch c.Kind {
		case firestore.DocumentAdded:
			kind = Added
		case firestore.DocumentModified:
			kind = Modified
		case firestore.DocumentRemoved:
			kind = Removed
		}
		snap.Changes = append(snap.Changes, Change{Kind: kind, Doc: Document{ID: c.Doc.Ref.ID, Data: c.Doc.Data()}})
	}
	return snap, nil
}

func (f *firestoreStream) Stop() { f.it.Stop() }
