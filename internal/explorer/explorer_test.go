package explorer_test

import (
	"context"
	"errors"
	"testing"

	"onchainvitals/internal/catalog"
	"onchainvitals/internal/explorer"
	"onchainvitals/internal/warehouse/warehousetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *explorer.Service {
	t.Helper()
	return explorer.NewService(warehousetest.Client(t), warehousetest.Catalog(t))
}

func TestLatestBlocks(t *testing.T) {
	blocks, err := newService(t).Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, blocks, 10)
	assert.Equal(t, int64(12), blocks[0].Number)
	assert.Equal(t, "h12", blocks[0].Hash)
	assert.Equal(t, int64(3), blocks[9].Number)
	assert.Nil(t, blocks[0].Version)
}

func TestBlockDetailCoinbaseFirst(t *testing.T) {
	d, err := newService(t).Block(context.Background(), 12)
	require.NoError(t, err)
	require.NotNil(t, d.Block.Version)
	assert.Equal(t, int64(1), *d.Block.Version)
	require.Len(t, d.Transactions, 2)
	assert.Equal(t, "b0", d.Transactions[0].ID)
	assert.True(t, d.Transactions[0].IsCoinbase)
	assert.Equal(t, "a1", d.Transactions[1].ID)

	_, err = newService(t).Block(context.Background(), 999)
	assert.True(t, errors.Is(err, explorer.ErrNotFound))
}

func TestTransactionWithInputsAndOutputs(t *testing.T) {
	svc := newService(t)
	tx, err := svc.Transaction(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "hash-a1", tx.Transaction.Hash)
	assert.InDelta(t, 0.0001, tx.Transaction.Fee, 1e-12)
	require.Len(t, tx.Inputs, 1)
	assert.Equal(t, "z9", tx.Inputs[0].SpentTxID)
	require.Len(t, tx.Outputs, 2)
	assert.Equal(t, int64(0), tx.Outputs[0].Index)
	assert.Equal(t, int64(1), tx.Outputs[1].Index)

	byHash, err := svc.Transaction(context.Background(), "hash-a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", byHash.Transaction.ID)
}

func TestSearch(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	res, err := svc.Search(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "block", res.Kind)
	assert.Equal(t, int64(7), res.Block.Block.Number)

	res, err = svc.Search(ctx, "h5")
	require.NoError(t, err)
	assert.Equal(t, "block", res.Kind)
	assert.Equal(t, int64(5), res.Block.Block.Number)

	res, err = svc.Search(ctx, "b0")
	require.NoError(t, err)
	assert.Equal(t, "transaction", res.Kind)
	assert.True(t, res.Transaction.Transaction.IsCoinbase)

	_, err = svc.Search(ctx, "nothing-here")
	assert.True(t, errors.Is(err, explorer.ErrNotFound))
	_, err = svc.Search(ctx, "404")
	assert.True(t, errors.Is(err, explorer.ErrNotFound))
	assert.Contains(t, err.Error(), "no block found for block_number = 404")
}

func TestUnconfiguredExplorer(t *testing.T) {
	reg, err := catalog.NewRegistryFromBytes([]byte(`
price: { table: P, date_col: DATE, value_col: V }
metrics:
  - { name: A, table: T, date_col: DATE, columns: [X] }
`), "test")
	require.NoError(t, err)
	svc := explorer.NewService(warehousetest.Client(t), reg)
	_, err = svc.Latest(context.Background())
	assert.True(t, errors.Is(err, explorer.ErrUnavailable))
}
