package etherscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chainnotes/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultURL = "https://api.etherscan.io/api"

	startBlock = "0"
	endBlock   = "99999999"

	noTransactionsMessage = "No transactions found"
)

type Config struct {
	URL    string
	APIKey string
	// Timeout bounds one request. Zero leaves requests bounded only by the caller's context.
	Timeout time.Duration
}

type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("etherscan api key is required")
	}
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		endpoint = DefaultURL
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid etherscan url: %w", err)
	}
	return &Client{
		url:        endpoint,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// RecentTransactions returns the newest limit transactions of address, newest first.
func (c *Client) RecentTransactions(ctx context.Context, address string, limit int) (domain.TransactionPage, error) {
	ctx, span := otel.Tracer("chainnotes/etherscan").Start(ctx, "etherscan.txlist", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("address", address), attribute.Int("limit", limit))

	if limit <= 0 {
		limit = 5
	}
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "txlist")
	params.Set("address", address)
	params.Set("startblock", startBlock)
	params.Set("endblock", endBlock)
	params.Set("page", "1")
	params.Set("offset", strconv.Itoa(limit))
	params.Set("sort", "desc")
	params.Set("apikey", c.apiKey)

	body, err := c.get(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.TransactionPage{}, err
	}

	var envelope txListResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		err = fmt.Errorf("decode txlist envelope: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.TransactionPage{}, err
	}
	page, err := envelope.toPage()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.TransactionPage{}, err
	}
	page.Raw = body
	span.SetAttributes(attribute.Int("tx.count", len(page.Transactions)))
	return page, nil
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	endpoint, err := url.Parse(c.url)
	if err != nil {
		return nil, err
	}
	query := endpoint.Query()
	for key, values := range params {
		query[key] = values
	}
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("etherscan status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

type txListResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// rpcTransaction is the txlist record as sent on the wire: every field is a string.
type rpcTransaction struct {
	BlockNumber       string `json:"blockNumber"`
	TimeStamp         string `json:"timeStamp"`
	Hash              string `json:"hash"`
	Nonce             string `json:"nonce"`
	BlockHash         string `json:"blockHash"`
	TransactionIndex  string `json:"transactionIndex"`
	From              string `json:"from"`
	To                string `json:"to"`
	Value             string `json:"value"`
	Gas               string `json:"gas"`
	GasPrice          string `json:"gasPrice"`
	IsError           string `json:"isError"`
	TxReceiptStatus   string `json:"txreceipt_status"`
	Input             string `json:"input"`
	ContractAddress   string `json:"contractAddress"`
	CumulativeGasUsed string `json:"cumulativeGasUsed"`
	GasUsed           string `json:"gasUsed"`
	Confirmations     string `json:"confirmations"`
	MethodID          string `json:"methodId"`
	FunctionName      string `json:"functionName"`
}

func (r txListResponse) toPage() (domain.TransactionPage, error) {
	page := domain.TransactionPage{Status: r.Status, Message: r.Message}
	trimmed := strings.TrimSpace(string(r.Result))
	if trimmed == "" || trimmed == "null" {
		if r.Status == "0" && !strings.HasPrefix(r.Message, noTransactionsMessage) {
			return domain.TransactionPage{}, fmt.Errorf("etherscan error: %s", r.Message)
		}
		page.Transactions = []domain.Transaction{}
		return page, nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var reason string
		if err := json.Unmarshal(r.Result, &reason); err != nil {
			return domain.TransactionPage{}, err
		}
		return domain.TransactionPage{}, fmt.Errorf("etherscan error: %s: %s", r.Message, reason)
	}

	var raw []rpcTransaction
	if err := json.Unmarshal(r.Result, &raw); err != nil {
		return domain.TransactionPage{}, fmt.Errorf("decode txlist result: %w", err)
	}
	page.Transactions = make([]domain.Transaction, 0, len(raw))
	for _, entry := range raw {
		tx, err := entry.toDomain()
		if err != nil {
			return domain.TransactionPage{}, fmt.Errorf("transaction %s: %w", entry.Hash, err)
		}
		page.Transactions = append(page.Transactions, tx)
	}
	return page, nil
}

func (r rpcTransaction) toDomain() (domain.Transaction, error) {
	timestamp, err := parseUint(r.TimeStamp, "timeStamp")
	if err != nil {
		return domain.Transaction{}, err
	}
	nonce, err := parseUint(r.Nonce, "nonce")
	if err != nil {
		return domain.Transaction{}, err
	}
	txIndex, err := parseUint(r.TransactionIndex, "transactionIndex")
	if err != nil {
		return domain.Transaction{}, err
	}
	confirmations, err := parseUint(r.Confirmations, "confirmations")
	if err != nil {
		return domain.Transaction{}, err
	}
	return domain.Transaction{
		BlockNumber:       r.BlockNumber,
		TimeStamp:         time.Unix(int64(timestamp), 0).UTC(),
		Hash:              strings.ToLower(r.Hash),
		Nonce:             nonce,
		BlockHash:         strings.ToLower(r.BlockHash),
		TransactionIndex:  txIndex,
		From:              strings.ToLower(r.From),
		To:                optionalAddress(r.To),
		Value:             r.Value,
		Gas:               r.Gas,
		GasPrice:          r.GasPrice,
		IsError:           r.IsError == "1",
		TxReceiptStatus:   r.TxReceiptStatus == "1",
		Input:             r.Input,
		ContractAddress:   optionalAddress(r.ContractAddress),
		CumulativeGasUsed: r.CumulativeGasUsed,
		GasUsed:           r.GasUsed,
		Confirmations:     confirmations,
		MethodID:          r.MethodID,
		FunctionName:      r.FunctionName,
	}, nil
}

func parseUint(value, field string) (uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", field, value)
	}
	return parsed, nil
}

func optionalAddress(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	lower := strings.ToLower(value)
	return &lower
}
