package handover

// CashStatus は現金受け渡しの状態です。
//
//	not_submitted -> pending_review -> approved | rejected
//
// approved と rejected は終端状態で、以降の遷移はありません。
type CashStatus string

const (
	CashNotSubmitted  CashStatus = "not_submitted"
	CashPendingReview CashStatus = "pending_review"
	CashApproved      CashStatus = "approved"
	CashRejected      CashStatus = "rejected"
)

// Decision は管理者による判定です。
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Valid は既知の状態かどうかを返します。
func (s CashStatus) Valid() bool {
	switch s {
	case CashNotSubmitted, CashPendingReview, CashApproved, CashRejected:
		return true
	}
	return false
}

// Terminal は終端状態かどうかを返します。
func (s CashStatus) Terminal() bool {
	return s == CashApproved || s == CashRejected
}

// Outstanding は未精算として集計対象になる状態かどうかを返します。
func (s CashStatus) Outstanding() bool {
	return s == CashNotSubmitted || s == CashPendingReview
}

// Apply は判定を適用した遷移先を返します。状態遷移の唯一の入口です。
func (s CashStatus) Apply(d Decision) (CashStatus, error) {
	if !s.Valid() {
		return s, ErrInvalidStatus
	}
	if s.Terminal() {
		return s, ErrAlreadyDecided
	}

	switch d {
	case DecisionApprove:
		return CashApproved, nil
	case DecisionReject:
		return CashRejected, nil
	}
	return s, ErrInvalidDecision
}

// DecidableStatuses は判定を受け付ける状態の一覧です。条件付き更新の前提条件に使います。
func DecidableStatuses() []CashStatus {
	return []CashStatus{CashNotSubmitted, CashPendingReview}
}

// ReadyLifecycleStatus は作業が完了し現金が回収済みの注文の状態です。
const ReadyLifecycleStatus = "ready"
