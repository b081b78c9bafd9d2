package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/google/uuid"
	"github.com/guregu/dynamo"
	"github.com/m-mizutani/weblogparser/internal"
	"github.com/m-mizutani/weblogparser/internal/util"
	"github.com/pkg/errors"
)

// ErrLockConflict means another process holds lock of the file.
var ErrLockConflict = errors.New("Lock is held by another process")

// ReleaseFunc releases acquired lock.
type ReleaseFunc func(ctx context.Context) error

// Locker serializes import of a file among processes.
type Locker interface {
	Lock(ctx context.Context, key string) (ReleaseFunc, error)
}

const (
	defaultLockKeyPrefix = "lock/"
	defaultLockTTL       = 30 * time.Minute
	defaultLockRetry     = 8
)

// ErrLockLost means lock item was taken by another owner while held.
var ErrLockLost = errors.New("Lock was lost")

// DynamoLocker is Locker with conditional put of DynamoDB. Lock item expires
// after TTL to recover from crashed process, and the holder extends
// expires_at every RenewInterval while the lock is held.
type DynamoLocker struct {
	KeyPrefix     string
	TTL           time.Duration
	RenewInterval time.Duration
	RetryLimit    int
	NewTimer      util.RetryTimerFactory

	table dynamo.Table
	owner string
}

type lockItem struct {
	PKey      string `dynamo:"pk"`
	SKey      string `dynamo:"sk"`
	Owner     string `dynamo:"owner"`
	ExpiresAt int64  `dynamo:"expires_at"`
}

// NewDynamoLocker is constructor of DynamoLocker. The table must have "pk" as
// hash key and "sk" as range key.
func NewDynamoLocker(region, tableName string) *DynamoLocker {
	db := dynamo.New(session.Must(session.NewSession()), &aws.Config{Region: aws.String(region)})

	return &DynamoLocker{
		KeyPrefix:     defaultLockKeyPrefix,
		TTL:           defaultLockTTL,
		RenewInterval: defaultLockTTL / 3,
		RetryLimit:    defaultLockRetry,
		NewTimer:      util.NewExpRetryTimer,
		table:         db.Table(tableName),
		owner:         uuid.New().String(),
	}
}

func (x *DynamoLocker) lockPK(key string) string {
	return fmt.Sprintf("%s%s", x.KeyPrefix, key)
}

// Lock puts lock item if it does not exist or expired. It retries until
// RetryLimit and returns ErrLockConflict if the lock is still held.
func (x *DynamoLocker) Lock(ctx context.Context, key string) (ReleaseFunc, error) {
	item := lockItem{
		PKey:  x.lockPK(key),
		SKey:  "file",
		Owner: x.owner,
	}

	timer := x.NewTimer(x.RetryLimit)
	err := timer.Run(ctx, func(seq int) (bool, error) {
		now := time.Now().UTC()
		item.ExpiresAt = now.Add(x.TTL).Unix()

		err := x.table.Put(item).
			If("attribute_not_exists('pk') OR 'expires_at' < ?", now.Unix()).
			RunWithContext(ctx)
		if err != nil {
			if isConditionalCheckErr(err) {
				internal.Logger.WithFields(map[string]interface{}{
					"key": key,
					"seq": seq,
				}).Debug("Lock is held, retrying")
				return false, nil
			}
			return false, errors.Wrapf(err, "Failed to put lock: %s", key)
		}
		return true, nil
	})

	if err != nil {
		if err == util.ErrRetryLimitExceeded {
			return nil, errors.Wrap(ErrLockConflict, key)
		}
		return nil, err
	}

	stop := func() {}
	if x.RenewInterval > 0 {
		stop = util.StartHeartbeat(x.RenewInterval, func(ctx context.Context) {
			if err := x.renew(ctx, item); err != nil {
				internal.HandleError(errors.Wrap(err, key))
			}
		})
	}

	release := func(ctx context.Context) error {
		stop()
		err := x.table.Delete("pk", item.PKey).Range("sk", item.SKey).
			If("'owner' = ?", x.owner).
			RunWithContext(ctx)
		if err != nil && !isConditionalCheckErr(err) {
			return errors.Wrapf(err, "Failed to release lock: %s", key)
		}
		return nil
	}

	return release, nil
}

func (x *DynamoLocker) renew(ctx context.Context, item lockItem) error {
	expiresAt := time.Now().UTC().Add(x.TTL).Unix()
	err := x.table.Update("pk", item.PKey).Range("sk", item.SKey).
		Set("expires_at", expiresAt).
		If("'owner' = ?", x.owner).
		RunWithContext(ctx)
	if err != nil {
		if isConditionalCheckErr(err) {
			return ErrLockLost
		}
		if ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "Failed to renew lock")
	}
	return nil
}
