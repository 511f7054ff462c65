package warehouse

import (
	"strconv"

	"onchainvitals/internal/catalog"
)

var (
	blockSummaryCols = []string{"BLOCK_NUMBER", "BLOCK_HASH", "BLOCK_TIMESTAMP", "SIZE", "TX_COUNT"}
	blockDetailCols  = []string{"BLOCK_NUMBER", "BLOCK_HASH", "BLOCK_TIMESTAMP", "SIZE", "TX_COUNT", "VERSION", "INSERTED_TIMESTAMP", "MODIFIED_TIMESTAMP"}
	blockTxCols      = []string{"TX_ID", "TX_HASH", "INPUT_COUNT", "OUTPUT_COUNT", "OUTPUT_VALUE_SATS", "FEE", "IS_COINBASE"}
	txDetailCols     = []string{"BLOCK_NUMBER", "BLOCK_TIMESTAMP", "BLOCK_HASH", "TX_ID", "TX_HASH", "FEE", "IS_COINBASE", "INPUT_COUNT", "OUTPUT_COUNT", "INPUT_VALUE", "OUTPUT_VALUE", "SIZE", "WEIGHT", "VERSION", "LOCK_TIME"}
	inputCols        = []string{"BLOCK_TIMESTAMP", "BLOCK_NUMBER", "BLOCK_HASH", "TX_ID", "INDEX", "IS_COINBASE", "SPENT_TX_ID", "SPENT_OUTPUT_INDEX", "VALUE", "VALUE_SATS", "INPUT_ID"}
	outputCols       = []string{"BLOCK_TIMESTAMP", "BLOCK_NUMBER", "BLOCK_HASH", "TX_ID", "INDEX", "VALUE", "VALUE_SATS", "OUTPUT_ID"}
)

const (
	LatestBlocksLimit = 10
	BlockTxLimit      = 100
	TxIOLimit         = 50
)

func (b *builder) selectCols(cols []string) {
	b.write("SELECT ")
	for i, c := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.write(b.d.Column(c), " AS ", quote(c))
	}
}

func limit(n int) string { return " LIMIT " + strconv.Itoa(n) }

// LatestBlocksQuery 返回最新的若干区块。
func LatestBlocksQuery(d Dialect, e catalog.ExplorerSource) Query {
	b := newBuilder(d)
	b.selectCols(blockSummaryCols)
	b.write(" FROM ", d.Table(e.Blocks), " ORDER BY ", d.Column("BLOCK_NUMBER"), " DESC", limit(LatestBlocksLimit))
	return b.query("explorer:latest_blocks")
}

func BlockByNumberQuery(d Dialect, e catalog.ExplorerSource, number int64) Query {
	b := newBuilder(d)
	b.selectCols(blockDetailCols)
	b.write(" FROM ", d.Table(e.Blocks), " WHERE ", d.Column("BLOCK_NUMBER"), " = ", b.bind(number), limit(1))
	return b.query("explorer:block_by_number")
}

func BlockByHashQuery(d Dialect, e catalog.ExplorerSource, hash string) Query {
	b := newBuilder(d)
	b.selectCols(blockDetailCols)
	b.write(" FROM ", d.Table(e.Blocks), " WHERE ", d.Column("BLOCK_HASH"), " = ", b.bind(hash), limit(1))
	return b.query("explorer:block_by_hash")
}

// BlockTransactionsQuery 区块内交易，coinbase 在前。
func BlockTransactionsQuery(d Dialect, e catalog.ExplorerSource, number int64) Query {
	b := newBuilder(d)
	b.selectCols(blockTxCols)
	b.write(" FROM ", d.Table(e.Transactions), " WHERE ", d.Column("BLOCK_NUMBER"), " = ", b.bind(number),
		" ORDER BY ", d.Column("IS_COINBASE"), " DESC, ", d.Column("TX_ID"), limit(BlockTxLimit))
	return b.query("explorer:block_transactions")
}

// TransactionQuery 按 TX_ID 或 TX_HASH 查交易，col 只能是这两者之一。
func TransactionQuery(d Dialect, e catalog.ExplorerSource, col, value string) Query {
	if col != "TX_HASH" {
		col = "TX_ID"
	}
	b := newBuilder(d)
	b.selectCols(txDetailCols)
	b.write(" FROM ", d.Table(e.Transactions), " WHERE ", d.Column(col), " = ", b.bind(value), limit(1))
	return b.query("explorer:transaction")
}

func InputsQuery(d Dialect, e catalog.ExplorerSource, txID string) Query {
	b := newBuilder(d)
	b.selectCols(inputCols)
	b.write(" FROM ", d.Table(e.Inputs), " WHERE ", d.Column("TX_ID"), " = ", b.bind(txID),
		" ORDER BY ", d.Column("INDEX"), limit(TxIOLimit))
	return b.query("explorer:inputs")
}

func OutputsQuery(d Dialect, e catalog.ExplorerSource, txID string) Query {
	b := newBuilder(d)
	b.selectCols(outputCols)
	b.write(" FROM ", d.Table(e.Outputs), " WHERE ", d.Column("TX_ID"), " = ", b.bind(txID),
		" ORDER BY ", d.Column("INDEX"), limit(TxIOLimit))
	return b.query("explorer:outputs")
}
