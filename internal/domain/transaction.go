package domain

import "time"

// Transaction is one account transaction as reported by the block explorer.
// JSON names follow the explorer's txlist payload.
type Transaction struct {
	BlockNumber       string    `json:"blockNumber"`
	TimeStamp         time.Time `json:"timeStamp"`
	Hash              string    `json:"hash"`
	Nonce             uint64    `json:"nonce"`
	BlockHash         string    `json:"blockHash"`
	TransactionIndex  uint64    `json:"transactionIndex"`
	From              string    `json:"from"`
	To                *string   `json:"to"`
	Value             string    `json:"value"`
	Gas               string    `json:"gas"`
	GasPrice          string    `json:"gasPrice"`
	IsError           bool      `json:"isError"`
	TxReceiptStatus   bool      `json:"txreceipt_status"`
	Input             string    `json:"input"`
	ContractAddress   *string   `json:"contractAddress"`
	CumulativeGasUsed string    `json:"cumulativeGasUsed"`
	GasUsed           string    `json:"gasUsed"`
	Confirmations     uint64    `json:"confirmations"`
	MethodID          string    `json:"methodId"`
	FunctionName      string    `json:"functionName"`
}

// TransactionPage is a single txlist response: the explorer's envelope plus the decoded records.
type TransactionPage struct {
	Status       string
	Message      string
	Transactions []Transaction
	// Raw is the response body exactly as received.
	Raw []byte
}
