// Package warehousetest 提供基于内存 sqlite 的仓库镜像，供各包测试使用。
package warehousetest

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"onchainvitals/internal/cache"
	"onchainvitals/internal/catalog"
	"onchainvitals/internal/pkg/circuit"
	"onchainvitals/internal/warehouse"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// Start 是价格等日度夹具的第一天。
var Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const Days = 40

// CatalogYAML 描述夹具中的表。
const CatalogYAML = `
price:
  table: BTC_DATA.DATA.BTC_PRICE_USD
  date_col: DATE
  value_col: BTC_PRICE_USD
hodl_waves:
  table: BTC_DATA.DATA.HODL_WAVES
  date_col: SNAPSHOT_DATE
  bucket_col: AGE_BUCKET
  value_col: PERCENT_SUPPLY
  buckets:
    - { key: "<1d", label: LT1D }
    - { key: "1d-1w", label: D1_1W }
    - { key: ">=10y", label: GTE10Y }
balance_bands:
  table: BTC_DATA.DATA.ADDRESS_BALANCE_BANDS_DAILY
  date_col: DAY
  band_col: BALANCE_BAND
  value_col: ADDRESS_COUNT
movement:
  table: BTC_DATA.DATA.BTC_PRICE_MOVEMENT_WEEKLY
  date_col: WEEK_START
  price_col: AVG_PRICE
  state_col: PRICE_MOVEMENT_STATE
explorer:
  blocks: CORE.FACT_BLOCKS
  transactions: CORE.FACT_TRANSACTIONS
  inputs: CORE.FACT_INPUTS
  outputs: CORE.FACT_OUTPUTS
metrics:
  - name: MVRV
    table: BTC_DATA.DATA.MVRV
    date_col: DATE
    columns: [MVRV]
  - name: SOPR
    table: BTC_DATA.DATA.SOPR
    date_col: DATE
    columns: [SOPR]
  - name: EXCHANGE FLOW
    table: BTC_DATA.DATA.EXCHANGE_FLOW
    date_col: DAY
    columns: [INFLOW_BTC, OUTFLOW_BTC]
  - name: TX COUNT
    table: BTC_DATA.DATA.TX_COUNT
    date_col: BLOCK_TIMESTAMP
    columns: [TX_COUNT]
    aggregate: sum
  - name: BTC PRICE
    table: BTC_DATA.DATA.BTC_PRICE_USD
    date_col: DATE
    columns: [BTC_PRICE_USD]
  - name: EMPTY
    table: BTC_DATA.DATA.EMPTY
    date_col: DATE
    columns: [VAL]
`

// Price 返回第 i 天的价格：前 20 天 100+i，之后 200+i。
func Price(i int) float64 {
	if i < 20 {
		return 100 + float64(i)
	}
	return 200 + float64(i)
}

func day(i int) string { return Start.AddDate(0, 0, i).Format("2006-01-02") }

// Catalog 构建夹具目录。
func Catalog(t testing.TB) *catalog.Registry {
	t.Helper()
	reg, err := catalog.NewRegistryFromBytes([]byte(CatalogYAML), "fixture")
	require.NoError(t, err)
	return reg
}

// DB 打开填充好的内存 sqlite。
func DB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	exec := func(stmt string, args ...any) {
		_, err := db.Exec(stmt, args...)
		require.NoError(t, err, stmt)
	}
	exec(`CREATE TABLE "BTC_DATA.DATA.BTC_PRICE_USD" (DATE TEXT, BTC_PRICE_USD REAL)`)
	exec(`CREATE TABLE "BTC_DATA.DATA.MVRV" (DATE TEXT, MVRV REAL)`)
	exec(`CREATE TABLE "BTC_DATA.DATA.SOPR" (DATE TEXT, SOPR REAL)`)
	exec(`CREATE TABLE "BTC_DATA.DATA.EXCHANGE_FLOW" (DAY TEXT, INFLOW_BTC REAL, OUTFLOW_BTC REAL)`)
	exec(`CREATE TABLE "BTC_DATA.DATA.TX_COUNT" (BLOCK_TIMESTAMP TEXT, TX_COUNT REAL)`)
	exec(`CREATE TABLE "BTC_DATA.DATA.EMPTY" (DATE TEXT, VAL REAL)`)
	for i := 0; i < Days; i++ {
		exec(`INSERT INTO "BTC_DATA.DATA.BTC_PRICE_USD" VALUES (?, ?)`, day(i), Price(i))
		exec(`INSERT INTO "BTC_DATA.DATA.SOPR" VALUES (?, ?)`, day(i), 1+0.01*float64(i))
		exec(`INSERT INTO "BTC_DATA.DATA.EXCHANGE_FLOW" VALUES (?, ?, ?)`, day(i), float64(i), float64(2*i))
		if i >= 10 {
			exec(`INSERT INTO "BTC_DATA.DATA.MVRV" VALUES (?, ?)`, day(i), Price(i)/100)
		}
	}
	exec(`INSERT INTO "BTC_DATA.DATA.BTC_PRICE_USD" VALUES (?, NULL)`, day(Days))
	for i := 0; i < 5; i++ {
		exec(`INSERT INTO "BTC_DATA.DATA.TX_COUNT" VALUES (?, 10), (?, 5)`, day(i)+" 01:00:00", day(i)+" 13:00:00")
	}

	exec(`CREATE TABLE "BTC_DATA.DATA.HODL_WAVES" (SNAPSHOT_DATE TEXT, AGE_BUCKET TEXT, PERCENT_SUPPLY REAL)`)
	for i := 0; i < 3; i++ {
		exec(`INSERT INTO "BTC_DATA.DATA.HODL_WAVES" VALUES (?, '>=10y', 3), (?, '<1d', 1), (?, '1d-1w', 2)`, day(i), day(i), day(i))
	}
	future := time.Now().UTC().AddDate(0, 0, 10).Format("2006-01-02")
	exec(`INSERT INTO "BTC_DATA.DATA.HODL_WAVES" VALUES (?, '<1d', 9)`, future)

	exec(`CREATE TABLE "BTC_DATA.DATA.ADDRESS_BALANCE_BANDS_DAILY" (DAY TEXT, BALANCE_BAND TEXT, ADDRESS_COUNT REAL)`)
	for i := 0; i < 3; i++ {
		exec(`INSERT INTO "BTC_DATA.DATA.ADDRESS_BALANCE_BANDS_DAILY" VALUES (?, '0-1', ?), (?, '1-10', ?)`,
			day(i), 1000+float64(i), day(i), 100+float64(i))
		if i != 1 {
			exec(`INSERT INTO "BTC_DATA.DATA.ADDRESS_BALANCE_BANDS_DAILY" VALUES (?, '10-100', 10)`, day(i))
		}
	}

	exec(`CREATE TABLE "BTC_DATA.DATA.BTC_PRICE_MOVEMENT_WEEKLY" (WEEK_START TEXT, AVG_PRICE REAL, PRICE_MOVEMENT_STATE INTEGER)`)
	exec(`INSERT INTO "BTC_DATA.DATA.BTC_PRICE_MOVEMENT_WEEKLY" VALUES ('2024-01-01', 100, 1), ('2024-01-08', 110, 2), ('2024-01-15', NULL, 0), ('2024-01-22', 90, -2)`)

	exec(`CREATE TABLE "CORE.FACT_BLOCKS" (BLOCK_NUMBER INTEGER, BLOCK_HASH TEXT, BLOCK_TIMESTAMP TEXT, SIZE INTEGER, TX_COUNT INTEGER, VERSION INTEGER, INSERTED_TIMESTAMP TEXT, MODIFIED_TIMESTAMP TEXT)`)
	for n := 1; n <= 12; n++ {
		exec(`INSERT INTO "CORE.FACT_BLOCKS" VALUES (?, ?, ?, 1000, 2, 1, ?, ?)`,
			n, fmt.Sprintf("h%d", n), day(n), day(n), day(n))
	}
	exec(`CREATE TABLE "CORE.FACT_TRANSACTIONS" (BLOCK_NUMBER INTEGER, BLOCK_TIMESTAMP TEXT, BLOCK_HASH TEXT, TX_ID TEXT, TX_HASH TEXT, FEE REAL, IS_COINBASE INTEGER, INPUT_COUNT INTEGER, OUTPUT_COUNT INTEGER, INPUT_VALUE REAL, OUTPUT_VALUE REAL, OUTPUT_VALUE_SATS INTEGER, SIZE INTEGER, WEIGHT INTEGER, VERSION INTEGER, LOCK_TIME INTEGER)`)
	exec(`INSERT INTO "CORE.FACT_TRANSACTIONS" VALUES
		(12, ?, 'h12', 'a1', 'hash-a1', 0.0001, 0, 1, 2, 1.5, 1.4999, 149990000, 250, 1000, 2, 0),
		(12, ?, 'h12', 'b0', 'hash-b0', 0, 1, 0, 1, 0, 6.25, 625000000, 200, 800, 1, 0)`, day(12), day(12))
	exec(`CREATE TABLE "CORE.FACT_INPUTS" (BLOCK_TIMESTAMP TEXT, BLOCK_NUMBER INTEGER, BLOCK_HASH TEXT, TX_ID TEXT, "INDEX" INTEGER, IS_COINBASE INTEGER, SPENT_TX_ID TEXT, SPENT_OUTPUT_INDEX INTEGER, VALUE REAL, VALUE_SATS INTEGER, INPUT_ID TEXT)`)
	exec(`INSERT INTO "CORE.FACT_INPUTS" VALUES (?, 12, 'h12', 'a1', 0, 0, 'z9', 1, 1.5, 150000000, 'a1-0')`, day(12))
	exec(`CREATE TABLE "CORE.FACT_OUTPUTS" (BLOCK_TIMESTAMP TEXT, BLOCK_NUMBER INTEGER, BLOCK_HASH TEXT, TX_ID TEXT, "INDEX" INTEGER, VALUE REAL, VALUE_SATS INTEGER, OUTPUT_ID TEXT)`)
	exec(`INSERT INTO "CORE.FACT_OUTPUTS" VALUES (?, 12, 'h12', 'a1', 1, 0.4999, 49990000, 'a1-1'), (?, 12, 'h12', 'a1', 0, 1.0, 100000000, 'a1-0')`, day(12), day(12))
	return db
}

// Client 返回连接到夹具的仓库客户端，附带内存缓存。
func Client(t testing.TB) *warehouse.Client {
	t.Helper()
	return warehouse.NewClient(DB(t), warehouse.SQLite, warehouse.Options{
		Timeout:  5 * time.Second,
		CacheTTL: time.Minute,
		Breaker:  circuit.NewCircuitBreaker("warehouse-test", 3, time.Minute),
		Cache:    cache.NewMemory(),
	})
}
