// Package explorer 提供区块浏览器的区块、交易、输入输出查询。
package explorer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"onchainvitals/internal/catalog"
	"onchainvitals/internal/pkg/convert"
	"onchainvitals/internal/warehouse"
)

// ErrNotFound 表示区块或交易不存在。
var ErrNotFound = errors.New("not found")

// ErrUnavailable 表示目录中未配置浏览器事实表。
var ErrUnavailable = errors.New("explorer tables not configured")

type Block struct {
	Number    int64     `json:"block_number"`
	Hash      string    `json:"block_hash"`
	Timestamp time.Time `json:"block_timestamp"`
	Size      int64     `json:"size"`
	TxCount   int64     `json:"tx_count"`

	Version    *int64     `json:"version,omitempty"`
	InsertedAt *time.Time `json:"inserted_timestamp,omitempty"`
	ModifiedAt *time.Time `json:"modified_timestamp,omitempty"`
}

// TxSummary 是区块交易列表中的一行。
type TxSummary struct {
	ID              string  `json:"tx_id"`
	Hash            string  `json:"tx_hash"`
	InputCount      int64   `json:"input_count"`
	OutputCount     int64   `json:"output_count"`
	OutputValueSats int64   `json:"output_value_sats"`
	Fee             float64 `json:"fee"`
	IsCoinbase      bool    `json:"is_coinbase"`
}

type Transaction struct {
	BlockNumber    int64     `json:"block_number"`
	BlockTimestamp time.Time `json:"block_timestamp"`
	BlockHash      string    `json:"block_hash"`
	ID             string    `json:"tx_id"`
	Hash           string    `json:"tx_hash"`
	Fee            float64   `json:"fee"`
	IsCoinbase     bool      `json:"is_coinbase"`
	InputCount     int64     `json:"input_count"`
	OutputCount    int64     `json:"output_count"`
	InputValue     float64   `json:"input_value"`
	OutputValue    float64   `json:"output_value"`
	Size           int64     `json:"size"`
	Weight         int64     `json:"weight"`
	Version        int64     `json:"version"`
	LockTime       int64     `json:"lock_time"`
}

type Input struct {
	Index            int64   `json:"index"`
	IsCoinbase       bool    `json:"is_coinbase"`
	SpentTxID        string  `json:"spent_tx_id"`
	SpentOutputIndex int64   `json:"spent_output_index"`
	Value            float64 `json:"value"`
	ValueSats        int64   `json:"value_sats"`
	ID               string  `json:"input_id"`
}

type Output struct {
	Index     int64   `json:"index"`
	Value     float64 `json:"value"`
	ValueSats int64   `json:"value_sats"`
	ID        string  `json:"output_id"`
}

// BlockDetail 是区块详情页：区块本身和其中的交易（coinbase 在前）。
type BlockDetail struct {
	Block        Block       `json:"block"`
	Transactions []TxSummary `json:"transactions"`
}

// TxDetail 是交易详情页。
type TxDetail struct {
	Transaction Transaction `json:"transaction"`
	Inputs      []Input     `json:"inputs"`
	Outputs     []Output    `json:"outputs"`
}

// SearchResult 中 Block 与 Transaction 只有一个非空。
type SearchResult struct {
	Kind        string       `json:"kind"` // block | transaction
	Block       *BlockDetail `json:"block,omitempty"`
	Transaction *TxDetail    `json:"transaction,omitempty"`
}

// Runner 由 warehouse.Client 实现。
type Runner interface {
	Run(ctx context.Context, q warehouse.Query) (*warehouse.Result, error)
	Dialect() warehouse.Dialect
}

type Service struct {
	wh      Runner
	catalog *catalog.Registry
}

func NewService(wh Runner, reg *catalog.Registry) *Service {
	return &Service{wh: wh, catalog: reg}
}

func (s *Service) source() (catalog.ExplorerSource, error) {
	src := s.catalog.Snapshot().Doc.Explorer
	if src.Blocks == "" || src.Transactions == "" || src.Inputs == "" || src.Outputs == "" {
		return src, ErrUnavailable
	}
	return src, nil
}

// Latest 返回最新的区块列表。
func (s *Service) Latest(ctx context.Context) ([]Block, error) {
	src, err := s.source()
	if err != nil {
		return nil, err
	}
	res, err := s.wh.Run(ctx, warehouse.LatestBlocksQuery(s.wh.Dialect(), src))
	if err != nil {
		return nil, err
	}
	out := make([]Block, 0, len(res.Rows))
	for _, r := range res.Maps() {
		out = append(out, toBlock(r))
	}
	return out, nil
}

// Block 返回区块详情。
func (s *Service) Block(ctx context.Context, number int64) (BlockDetail, error) {
	src, err := s.source()
	if err != nil {
		return BlockDetail{}, err
	}
	return s.blockDetail(ctx, src, warehouse.BlockByNumberQuery(s.wh.Dialect(), src, number),
		fmt.Sprintf("block_number = %d", number))
}

func (s *Service) blockDetail(ctx context.Context, src catalog.ExplorerSource, q warehouse.Query, what string) (BlockDetail, error) {
	row, err := s.one(ctx, q)
	if err != nil {
		return BlockDetail{}, err
	}
	if row == nil {
		return BlockDetail{}, fmt.Errorf("%w: no block found for %s", ErrNotFound, what)
	}
	b := toBlock(row)
	res, err := s.wh.Run(ctx, warehouse.BlockTransactionsQuery(s.wh.Dialect(), src, b.Number))
	if err != nil {
		return BlockDetail{}, err
	}
	txs := make([]TxSummary, 0, len(res.Rows))
	for _, r := range res.Maps() {
		txs = append(txs, TxSummary{
			ID:              str(r["TX_ID"]),
			Hash:            str(r["TX_HASH"]),
			InputCount:      integer(r["INPUT_COUNT"]),
			OutputCount:     integer(r["OUTPUT_COUNT"]),
			OutputValueSats: integer(r["OUTPUT_VALUE_SATS"]),
			Fee:             convert.ToFloat64(r["FEE"]),
			IsCoinbase:      boolean(r["IS_COINBASE"]),
		})
	}
	return BlockDetail{Block: b, Transactions: txs}, nil
}

// Transaction 按 TX_ID 查交易，找不到再按 TX_HASH。
func (s *Service) Transaction(ctx context.Context, id string) (TxDetail, error) {
	src, err := s.source()
	if err != nil {
		return TxDetail{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return TxDetail{}, fmt.Errorf("%w: empty transaction id", ErrNotFound)
	}
	d := s.wh.Dialect()
	for _, col := range []string{"TX_ID", "TX_HASH"} {
		row, err := s.one(ctx, warehouse.TransactionQuery(d, src, col, id))
		if err != nil {
			return TxDetail{}, err
		}
		if row != nil {
			return s.txDetail(ctx, src, toTransaction(row))
		}
	}
	return TxDetail{}, fmt.Errorf("%w: no transaction %s", ErrNotFound, id)
}

func (s *Service) txDetail(ctx context.Context, src catalog.ExplorerSource, tx Transaction) (TxDetail, error) {
	d := s.wh.Dialect()
	ins, err := s.wh.Run(ctx, warehouse.InputsQuery(d, src, tx.ID))
	if err != nil {
		return TxDetail{}, err
	}
	outs, err := s.wh.Run(ctx, warehouse.OutputsQuery(d, src, tx.ID))
	if err != nil {
		return TxDetail{}, err
	}
	detail := TxDetail{Transaction: tx, Inputs: []Input{}, Outputs: []Output{}}
	for _, r := range ins.Maps() {
		detail.Inputs = append(detail.Inputs, Input{
			Index:            integer(r["INDEX"]),
			IsCoinbase:       boolean(r["IS_COINBASE"]),
			SpentTxID:        str(r["SPENT_TX_ID"]),
			SpentOutputIndex: integer(r["SPENT_OUTPUT_INDEX"]),
			Value:            convert.ToFloat64(r["VALUE"]),
			ValueSats:        integer(r["VALUE_SATS"]),
			ID:               str(r["INPUT_ID"]),
		})
	}
	for _, r := range outs.Maps() {
		detail.Outputs = append(detail.Outputs, Output{
			Index:     integer(r["INDEX"]),
			Value:     convert.ToFloat64(r["VALUE"]),
			ValueSats: integer(r["VALUE_SATS"]),
			ID:        str(r["OUTPUT_ID"]),
		})
	}
	return detail, nil
}

// Search 全数字按区块高度查；否则依次尝试区块哈希、交易 ID、交易哈希。
func (s *Service) Search(ctx context.Context, input string) (SearchResult, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return SearchResult{}, fmt.Errorf("%w: empty search", ErrNotFound)
	}
	src, err := s.source()
	if err != nil {
		return SearchResult{}, err
	}
	if isDigits(input) {
		n, err := strconv.ParseInt(input, 10, 64)
		if err != nil {
			return SearchResult{}, fmt.Errorf("%w: no block found for block_number = %s", ErrNotFound, input)
		}
		b, err := s.Block(ctx, n)
		if err != nil {
			return SearchResult{}, err
		}
		return SearchResult{Kind: "block", Block: &b}, nil
	}
	b, err := s.blockDetail(ctx, src, warehouse.BlockByHashQuery(s.wh.Dialect(), src, input), "hash "+input)
	if err == nil {
		return SearchResult{Kind: "block", Block: &b}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return SearchResult{}, err
	}
	tx, err := s.Transaction(ctx, input)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return SearchResult{}, fmt.Errorf("%w: no block or transaction found matching %s", ErrNotFound, input)
		}
		return SearchResult{}, err
	}
	return SearchResult{Kind: "transaction", Transaction: &tx}, nil
}

func (s *Service) one(ctx context.Context, q warehouse.Query) (warehouse.Row, error) {
	res, err := s.wh.Run(ctx, q)
	if err != nil {
		return nil, err
	}
	rows := res.Maps()
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func toBlock(r warehouse.Row) Block {
	b := Block{
		Number:    integer(r["BLOCK_NUMBER"]),
		Hash:      str(r["BLOCK_HASH"]),
		Timestamp: timestamp(r["BLOCK_TIMESTAMP"]),
		Size:      integer(r["SIZE"]),
		TxCount:   integer(r["TX_COUNT"]),
	}
	if v, ok := r["VERSION"]; ok && v != nil {
		n := integer(v)
		b.Version = &n
	}
	if v, ok := r["INSERTED_TIMESTAMP"]; ok && v != nil {
		t := timestamp(v)
		b.InsertedAt = &t
	}
	if v, ok := r["MODIFIED_TIMESTAMP"]; ok && v != nil {
		t := timestamp(v)
		b.ModifiedAt = &t
	}
	return b
}

func toTransaction(r warehouse.Row) Transaction {
	return Transaction{
		BlockNumber:    integer(r["BLOCK_NUMBER"]),
		BlockTimestamp: timestamp(r["BLOCK_TIMESTAMP"]),
		BlockHash:      str(r["BLOCK_HASH"]),
		ID:             str(r["TX_ID"]),
		Hash:           str(r["TX_HASH"]),
		Fee:            convert.ToFloat64(r["FEE"]),
		IsCoinbase:     boolean(r["IS_COINBASE"]),
		InputCount:     integer(r["INPUT_COUNT"]),
		OutputCount:    integer(r["OUTPUT_COUNT"]),
		InputValue:     convert.ToFloat64(r["INPUT_VALUE"]),
		OutputValue:    convert.ToFloat64(r["OUTPUT_VALUE"]),
		Size:           integer(r["SIZE"]),
		Weight:         integer(r["WEIGHT"]),
		Version:        integer(r["VERSION"]),
		LockTime:       integer(r["LOCK_TIME"]),
	}
}

func str(v any) string {
	if v == nil {
		return ""
	}
	return convert.ToString(v)
}

func integer(v any) int64 { return int64(convert.ToFloat64(v)) }

func boolean(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	if s, ok := v.(string); ok {
		return strings.EqualFold(s, "true") || s == "1"
	}
	return convert.ToFloat64(v) != 0
}

func timestamp(v any) time.Time {
	t, err := convert.ToTime(v)
	if err != nil {
		return time.Time{}
	}
	return t
}
