// Package dbtest starts a throwaway MongoDB for repository tests.
package dbtest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"spicery/db"
	"spicery/utils"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap/zaptest"
)

const image = "mongo:7"

var (
	once    sync.Once
	client  *mongo.Client
	initErr error
)

// NewStore returns a Store on a fresh database with all indexes created.
// The container is shared by every test in the package binary and reaped
// by testcontainers when the process exits. The test is skipped under
// -short or when no container runtime is available.
func NewStore(t *testing.T) *db.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("mongo integration test skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		var c *mongodb.MongoDBContainer
		c, initErr = mongodb.Run(ctx, image)
		if initErr != nil {
			return
		}
		var uri string
		if uri, initErr = c.ConnectionString(ctx); initErr != nil {
			return
		}
		client, initErr = mongo.Connect(ctx, options.Client().ApplyURI(uri))
	})
	require.NoError(t, initErr, "start mongo container")

	name := "t_" + strings.ReplaceAll(utils.GetUUID(), "-", "")[:16]
	store := db.New(client, name, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, store.EnsureIndexes(ctx))

	t.Cleanup(func() {
		_ = client.Database(name).Drop(context.Background())
	})
	return store
}
