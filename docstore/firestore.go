package docstore

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) All(ctx context.Context, collection string) ([]Document, error) {
	snaps, err := s.client.Collection(collection).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, fromSnapshot(snap))
	}
	return docs, nil
}

func (s *FirestoreStore) Get(ctx context.Context, collection string, id string) (*Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	doc := fromSnapshot(snap)
	return &doc, nil
}

func (s *FirestoreStore) Set(ctx context.Context, collection string, id string, data map[string]any) error {
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, data)
	return err
}

func (s *FirestoreStore) NewID(collection string) string {
	return s.client.Collection(collection).NewDoc().ID
}

func (s *FirestoreStore) Batch() Batch {
	return &firestoreBatch{client: s.client, wb: s.client.Batch()}
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

type firestoreBatch struct {
	client *firestore.Client
	wb     *firestore.WriteBatch
	n      int
}

func (b *firestoreBatch) Set(collection string, id string, data map[string]any) {
	b.wb.Set(b.client.Collection(collection).Doc(id), data)
	b.n++
}

func (b *firestoreBatch) Merge(collection string, id string, data map[string]any) {
	b.wb.Set(b.client.Collection(collection).Doc(id), data, firestore.MergeAll)
	b.n++
}

func (b *firestoreBatch) Len() int {
	return b.n
}

func (b *firestoreBatch) Commit(ctx context.Context) error {
	if b.n == 0 {
		return nil
	}
	_, err := b.wb.Commit(ctx)
	return err
}

func fromSnapshot(snap *firestore.DocumentSnapshot) Document {
	return Document{
		ID:         snap.Ref.ID,
		Data:       snap.Data(),
		CreateTime: snap.CreateTime,
		UpdateTime: snap.UpdateTime,
	}
}
