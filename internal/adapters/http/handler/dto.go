package handler

import (
	"encoding/json"
	"time"

	"github.com/ogurasousui/masters-service/internal/core/handover"
	"github.com/ogurasousui/masters-service/internal/core/master"
	"github.com/ogurasousui/masters-service/internal/core/schedule"
	"github.com/shopspring/decimal"
)

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

type masterResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Login       *string   `json:"login"`
	Cities      []string  `json:"cities"`
	Status      string    `json:"status"`
	Note        *string   `json:"note"`
	TelegramID  *string   `json:"telegramId"`
	ChatID      *string   `json:"chatId"`
	PassportDoc *string   `json:"passportDoc"`
	ContractDoc *string   `json:"contractDoc"`
	HiredAt     time.Time `json:"hiredAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toMasterResponse(m *master.Master) masterResponse {
	cities := m.Cities
	if cities == nil {
		cities = []string{}
	}
	return masterResponse{
		ID:          m.ID,
		Name:        m.Name,
		Login:       m.Login,
		Cities:      cities,
		Status:      string(m.Status),
		Note:        m.Note,
		TelegramID:  m.TelegramID,
		ChatID:      m.ChatID,
		PassportDoc: m.PassportDoc,
		ContractDoc: m.ContractDoc,
		HiredAt:     m.HiredAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toMasterResponses(ms []*master.Master) []masterResponse {
	out := make([]masterResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMasterResponse(m))
	}
	return out
}

type createMasterRequest struct {
	Name        string   `json:"name"`
	Login       *string  `json:"login"`
	Password    *string  `json:"password"`
	Cities      []string `json:"cities"`
	Status      *string  `json:"status"`
	Note        *string  `json:"note"`
	TelegramID  *string  `json:"telegramId"`
	ChatID      *string  `json:"chatId"`
	PassportDoc *string  `json:"passportDoc"`
	ContractDoc *string  `json:"contractDoc"`
}

func (req createMasterRequest) toInput() master.CreateInput {
	in := master.CreateInput{
		Name:        req.Name,
		Login:       req.Login,
		Password:    req.Password,
		Cities:      req.Cities,
		Note:        req.Note,
		TelegramID:  req.TelegramID,
		ChatID:      req.ChatID,
		PassportDoc: req.PassportDoc,
		ContractDoc: req.ContractDoc,
	}
	if req.Status != nil {
		s := master.Status(*req.Status)
		in.Status = &s
	}
	return in
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type statsResponse struct {
	Master  *masterResponse `json:"master,omitempty"`
	Orders  statsOrders     `json:"orders"`
	Revenue statsRevenue    `json:"revenue"`
}

type statsOrders struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"inProgress"`
}

type statsRevenue struct {
	Total        json.Number `json:"total"`
	Clean        json.Number `json:"clean"`
	MasterChange json.Number `json:"masterChange"`
}

func toStatsResponse(s *master.OrderStats) statsResponse {
	out := statsResponse{
		Orders: statsOrders{Total: s.Total, Completed: s.Completed, InProgress: s.InProgress},
		Revenue: statsRevenue{
			Total:        money(s.Revenue),
			Clean:        money(s.Clean),
			MasterChange: money(s.MasterChange),
		},
	}
	if s.Master != nil {
		m := toMasterResponse(s.Master)
		out.Master = &m
	}
	return out
}

type orderResponse struct {
	ID                   string      `json:"id"`
	MasterID             string      `json:"masterId"`
	MasterName           string      `json:"masterName"`
	City                 string      `json:"city"`
	Address              string      `json:"address"`
	Problem              string      `json:"problem"`
	Status               string      `json:"status"`
	Result               json.Number `json:"result"`
	Clean                json.Number `json:"clean"`
	MasterChange         json.Number `json:"masterChange"`
	CashSubmissionStatus string      `json:"cashSubmissionStatus"`
	CashReceiptDoc       *string     `json:"cashReceiptDoc"`
	ClosedAt             *time.Time  `json:"closedAt"`
	CashApprovedBy       *string     `json:"cashApprovedBy"`
	CashApprovedAt       *time.Time  `json:"cashApprovedAt"`
	CreatedAt            time.Time   `json:"createdAt"`
}

func toOrderResponse(o *handover.Order) orderResponse {
	return orderResponse{
		ID:                   o.ID,
		MasterID:             o.MasterID,
		MasterName:           o.MasterName,
		City:                 o.City,
		Address:              o.Address,
		Problem:              o.Problem,
		Status:               o.Status,
		Result:               money(o.Result),
		Clean:                money(o.Clean),
		MasterChange:         money(o.MasterChange),
		CashSubmissionStatus: string(o.CashStatus),
		CashReceiptDoc:       o.ReceiptDoc,
		ClosedAt:             o.ClosedAt,
		CashApprovedBy:       o.ApprovedBy,
		CashApprovedAt:       o.ApprovedAt,
		CreatedAt:            o.CreatedAt,
	}
}

type masterTotalResponse struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Cities      []string    `json:"cities"`
	TotalAmount json.Number `json:"totalAmount"`
	OrdersCount int         `json:"ordersCount"`
}

type summaryResponse struct {
	Masters     []masterTotalResponse `json:"masters"`
	TotalAmount json.Number           `json:"totalAmount"`
}

func toSummaryResponse(s *handover.Summary) summaryResponse {
	rows := make([]masterTotalResponse, 0, len(s.Masters))
	for _, m := range s.Masters {
		rows = append(rows, masterTotalResponse{
			ID:          m.ID,
			Name:        m.Name,
			Cities:      m.Cities,
			TotalAmount: money(m.Total),
			OrdersCount: m.OrdersCount,
		})
	}
	return summaryResponse{Masters: rows, TotalAmount: money(s.Total)}
}

type masterRefResponse struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Cities []string `json:"cities"`
}

type detailResponse struct {
	Master      masterRefResponse `json:"master"`
	Orders      []orderResponse   `json:"orders"`
	TotalAmount json.Number       `json:"totalAmount"`
}

func toDetailResponse(d *handover.Detail) detailResponse {
	orders := make([]orderResponse, 0, len(d.Orders))
	for _, o := range d.Orders {
		orders = append(orders, toOrderResponse(o))
	}
	return detailResponse{
		Master:      masterRefResponse{ID: d.Master.ID, Name: d.Master.Name, Cities: d.Master.Cities},
		Orders:      orders,
		TotalAmount: money(d.Total),
	}
}

type dayPayload struct {
	Date      string `json:"date"`
	IsWorkDay *bool  `json:"isWorkDay"`
}

type replaceScheduleRequest struct {
	Days []dayPayload `json:"days"`
}

func (req replaceScheduleRequest) toDays() ([]schedule.Day, error) {
	days := make([]schedule.Day, 0, len(req.Days))
	for i, d := range req.Days {
		date, err := schedule.ParseDate(d.Date)
		if err != nil {
			return nil, err
		}
		if d.IsWorkDay == nil {
			return nil, fmtMalformed("days[%d].isWorkDay is required", i)
		}
		days = append(days, schedule.Day{Date: date, IsWorkDay: *d.IsWorkDay})
	}
	return days, nil
}

type dayResponse struct {
	Date      string `json:"date"`
	IsWorkDay bool   `json:"isWorkDay"`
}

func toDayResponses(days []schedule.Day) []dayResponse {
	out := make([]dayResponse, 0, len(days))
	for _, d := range days {
		out = append(out, dayResponse{Date: d.Date.Format(schedule.DateLayout), IsWorkDay: d.IsWorkDay})
	}
	return out
}

type scheduleResponse struct {
	MasterID string        `json:"masterId"`
	Days     []dayResponse `json:"days"`
}

type masterScheduleResponse struct {
	MasterID string        `json:"masterId"`
	Name     string        `json:"name"`
	Cities   []string      `json:"cities"`
	Days     []dayResponse `json:"days"`
}

func toMasterScheduleResponses(in []schedule.MasterSchedule) []masterScheduleResponse {
	out := make([]masterScheduleResponse, 0, len(in))
	for _, ms := range in {
		out = append(out, masterScheduleResponse{
			MasterID: ms.MasterID,
			Name:     ms.Name,
			Cities:   ms.Cities,
			Days:     toDayResponses(ms.Days),
		})
	}
	return out
}

type replaceResponse struct {
	UpdatedCount int `json:"updatedCount"`
}
