package pending

import (
	"github.com/BatmanBruc/club-membership-bot/internal/i18n"
	"github.com/BatmanBruc/club-membership-bot/internal/utils"
	"github.com/BatmanBruc/club-membership-bot/types"
	"github.com/go-telegram/bot/models"
)

// option is one reply keyboard entry.
type option = i18n.Text

var (
	optBuy       = option{EN: "Buy Membership", RU: "Купить участие"}
	optRenew     = option{EN: "Renew Membership", RU: "Продлить участие"}
	optOldMember = option{EN: "I'm an Old Member", RU: "Я старый участник"}
	optCancel    = option{EN: "Cancel Membership", RU: "Отменить участие"}

	optMonthly = option{EN: "Monthly", RU: "Месяц"}
	optYearly  = option{EN: "Yearly", RU: "Год"}

	optPaid = option{EN: "Done", RU: "Готово"}

	optConfirmCancel = option{EN: "Yes, cancel", RU: "Да, отменить"}
	optKeepMember    = option{EN: "No, keep it", RU: "Нет, оставить"}
)

var menuOptions = []option{optBuy, optRenew, optOldMember, optCancel}

func keyboard(lang i18n.Lang, opts ...option) *models.ReplyKeyboardMarkup {
	labels := make([]string, 0, len(opts))
	for _, o := range opts {
		labels = append(labels, o.In(lang))
	}
	return utils.BuildReplyKeyboard(labels)
}

func parsePlan(reply string) (types.Plan, bool) {
	switch {
	case optMonthly.Matches(reply):
		return types.PlanMonthly, true
	case optYearly.Matches(reply):
		return types.PlanYearly, true
	}
	return types.ParsePlan(reply)
}

// next maps each step of the purchase and renewal flows to its successor.
var next = map[types.PendingStatus]types.PendingStatus{
	types.StatusBuyMembership:         types.StatusChoosingPaymentMethod,
	types.StatusChoosingPaymentMethod: types.StatusAwaitingPayment,
	types.StatusAwaitingPayment:       types.StatusAwaitingProof,
	types.StatusAwaitingProof:         types.StatusWaitingApproval,
	types.StatusRenewalPlan:           types.StatusRenewalMethod,
	types.StatusRenewalMethod:         types.StatusRenewalPayment,
	types.StatusRenewalPayment:        types.StatusRenewalProof,
	types.StatusRenewalProof:          types.StatusWaitingApproval,
}
