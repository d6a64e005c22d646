package handover

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order は現金受け渡しの対象となる作業注文です。
type Order struct {
	ID           string
	MasterID     string
	MasterName   string
	City         string
	Address      string
	Problem      string
	Status       string
	Result       decimal.Decimal
	Clean        decimal.Decimal
	MasterChange decimal.Decimal
	CashStatus   CashStatus
	ReceiptDoc   *string
	ClosedAt     *time.Time
	ApprovedBy   *string
	ApprovedAt   *time.Time
	CreatedAt    time.Time
}

// MasterTotal は作業員ごとの未精算額の集計行です。
type MasterTotal struct {
	ID          string
	Name        string
	Cities      []string
	Total       decimal.Decimal
	OrdersCount int
}

// Summary は未精算額の集計結果です。Total は各作業員の丸め済み合計の和です。
type Summary struct {
	Masters []MasterTotal
	Total   decimal.Decimal
}

// MasterRef は詳細表示用の作業員情報です。
type MasterRef struct {
	ID     string
	Name   string
	Cities []string
}

// Detail は作業員 1 名分の未精算注文一覧です。
type Detail struct {
	Master MasterRef
	Orders []*Order
	Total  decimal.Decimal
}

// Transition は条件付き状態更新の入力です。
type Transition struct {
	OrderID string
	From    []CashStatus
	To      CashStatus
	ActorID string
	At      time.Time
}
