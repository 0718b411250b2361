package auth

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"storefront-api/models"
	"storefront-api/store"
)

// FirestoreProfiles reads the role field of users/{uid}. Subscribers get a
// live snapshot listener, so role changes arrive without polling.
type FirestoreProfiles struct {
	client *firestore.Client
}

func NewFirestoreProfiles(client *firestore.Client) *FirestoreProfiles {
	return &FirestoreProfiles{client: client}
}

func (p *FirestoreProfiles) doc(uid string) *firestore.DocumentRef {
	return p.client.Collection(store.CollectionUsers).Doc(uid)
}

func (p *FirestoreProfiles) ResolveRole(ctx context.Context, principalID string) (models.Role, error) {
	snap, err := p.doc(principalID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return models.RoleUser, nil
	}
	if err != nil {
		return "", errors.Wrap(err, "resolve role")
	}
	return roleFromSnapshot(snap)
}

func roleFromSnapshot(snap *firestore.DocumentSnapshot) (models.Role, error) {
	if snap == nil || !snap.Exists() {
		return models.RoleUser, nil
	}
	var profile models.Profile
	if err := snap.DataTo(&profile); err != nil {
		return "", errors.Wrap(err, "decode profile")
	}
	return roleOrUser(profile.Role), nil
}

func (p *FirestoreProfiles) Subscribe(ctx context.Context, principalID string, fn func(models.Role, error)) (CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)
	it := p.doc(principalID).Snapshots(ctx)

	go func() {
		defer it.Stop()
		var last models.Role
		for {
			snap, err := it.Next()
			if ctx.Err() != nil {
				return
			}
			// A missing document arrives as a snapshot that does not exist,
			// so every error here ends the listener.
			if err != nil {
				fn("", errors.Wrap(err, "watch profile"))
				return
			}
			role, err := roleFromSnapshot(snap)
			if err != nil {
				fn("", err)
				continue
			}
			if role != last {
				fn(role, nil)
				last = role
			}
		}
	}()
	return onceCancel(cancel), nil
}
