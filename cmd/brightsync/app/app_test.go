package app

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/brightsync"
	"github.com/agentstation/brightsync/pkg/catalog"
	"github.com/agentstation/brightsync/pkg/catalog/catalogtest"
	"github.com/agentstation/brightsync/pkg/config"
	"github.com/agentstation/brightsync/pkg/docstore"
	"github.com/agentstation/brightsync/pkg/state"
)

func testApp(t *testing.T, docs *docstore.FS, fake *catalogtest.Fake) *App {
	t.Helper()
	chdir(t)
	nop := zerolog.Nop()
	a, err := New("1.2.3", "abc123", "2024-06-01", "test",
		WithConfig(&Config{
			Format:      "json",
			DataDir:     ".",
			LockDir:     t.TempDir(),
			Parallelism: 2,
			MaxAttempts: 3,
			PageSize:    500,
			HTTPTimeout: time.Second,
		}),
		WithLogger(&nop),
		WithRunnerOptions(
			brightsync.WithDocStore(docs),
			brightsync.WithCatalogFactory(func(*config.Store) catalog.Client { return fake }),
		),
	)
	require.NoError(t, err)
	return a
}

func storeDocs(t *testing.T) *docstore.FS {
	t.Helper()
	docs := docstore.NewMemory()
	doc := `{"store_name": "Acme", "brightstores_url": "https://shop.example.com", "prefix_to_tag": {"ABC": 100}}`
	require.NoError(t, docs.Upload(context.Background(), config.StorePath("acme"), []byte(doc)))
	return docs
}

func TestVersionCommand(t *testing.T) {
	a := testApp(t, docstore.NewMemory(), &catalogtest.Fake{})
	cmd := a.createRootCommand()

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, buf.String(), "brightsync version 1.2.3")
	assert.Contains(t, buf.String(), "commit: abc123")
}

func TestStoreCommandNeedsTarget(t *testing.T) {
	a := testApp(t, docstore.NewMemory(), &catalogtest.Fake{})
	err := a.Execute(context.Background(), []string{"scan"})
	assert.ErrorContains(t, err, "--all")
}

func TestRunCommand(t *testing.T) {
	docs := storeDocs(t)
	fake := &catalogtest.Fake{}
	fake.AddProduct(catalog.Product{ID: "1", SKU: "ABC-1", Name: "Widget", UpdatedAt: "2099-01-01T00:00:00Z"}, nil)
	fake.Inventory = []catalog.InventoryRow{{ProductID: "1", FinalSKU: "ABC-1-S"}}
	a := testApp(t, docs, fake)

	require.NoError(t, a.Execute(context.Background(), []string{"run", "--all"}))

	batch, err := state.New(docs).Batches.Load(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "ABC-1-S", batch[0].SKU)
}

func TestFailedStoreFailsCommand(t *testing.T) {
	a := testApp(t, storeDocs(t), &catalogtest.Fake{})
	err := a.Execute(context.Background(), []string{"sync", "nope"})
	assert.ErrorContains(t, err, "1 of 1 stores failed")
}

func TestRerunWithoutFulfillment(t *testing.T) {
	a := testApp(t, storeDocs(t), &catalogtest.Fake{})
	err := a.Execute(context.Background(), []string{"rerun"})
	assert.Error(t, err)
}
