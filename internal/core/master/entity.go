package master

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status は作業員の雇用状態を表します。
type Status string

const (
	StatusActive     Status = "active"
	StatusTerminated Status = "terminated"
	StatusOnLeave    Status = "on_leave"
	StatusSickLeave  Status = "sick_leave"
)

// Master は作業員エンティティです。
type Master struct {
	ID          string
	Name        string
	Login       *string
	Cities      []string
	Status      Status
	Note        *string
	TelegramID  *string
	ChatID      *string
	PassportDoc *string
	ContractDoc *string
	HiredAt     time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderStats は作業員 1 名分の注文統計です。
type OrderStats struct {
	Master       *Master
	Total        int
	Completed    int
	InProgress   int
	Revenue      decimal.Decimal
	Clean        decimal.Decimal
	MasterChange decimal.Decimal
}

// StatsRange は注文作成日時に対する両端を含む範囲です。
type StatsRange struct {
	From *time.Time
	To   *time.Time
}
