package messages

import (
	"fmt"
	"strings"
	"time"

	"github.com/BatmanBruc/club-membership-bot/internal/i18n"
)

const ParseModeHTML = "HTML"

const dateLayout = "02 Jan 2006"

func Escape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(s))
}

func Title(text string) string {
	return fmt.Sprintf("✨ <b>%s</b>", Escape(text))
}

// MemberLabel renders a member for admin-facing messages.
func MemberLabel(userID int64, username string) string {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return fmt.Sprintf("<code>%d</code>", userID)
	}
	return fmt.Sprintf("@%s (<code>%d</code>)", Escape(username), userID)
}

// Date formats t in the community's civil time zone.
func Date(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(dateLayout)
}

func DateTime(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("02 Jan 2006 15:04")
}

func ErrorDefault(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"🚫 <b>Something went wrong</b>\nPlease try again.",
		"🚫 <b>Ошибка</b>\nПопробуйте ещё раз.")
}

func ErrorUnknownCommand(lang i18n.Lang) string {
	return i18n.Pick(lang, "❓ <b>Unknown command</b>", "❓ <b>Команда не найдена</b>")
}

func ErrorUnsupportedMessageType(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"🤖 <b>I can't handle that</b>\nUse /start to open the menu.",
		"🤖 <b>Я так не умею</b>\nОткройте меню командой /start.")
}

func AccessDenied(lang i18n.Lang) string {
	return i18n.Pick(lang, "⛔ <b>Admins only</b>", "⛔ <b>Только для администраторов</b>")
}

func InvalidOption(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"⚠️ <b>Invalid option</b>\nPlease pick one of the buttons below.",
		"⚠️ <b>Неверный вариант</b>\nВыберите одну из кнопок ниже.")
}

func NoActiveRequest(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"ℹ️ Nothing in progress. Use /start to open the menu.",
		"ℹ️ Нет активного запроса. Откройте меню командой /start.")
}

func FlowCancelled(lang i18n.Lang) string {
	return i18n.Pick(lang, "👌 Cancelled. Use /start any time.", "👌 Отменено. Команда /start откроет меню.")
}

func Help(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"ℹ️ <b>Commands</b>\n/start — membership menu\n/status — your membership\n/cancel — abort the current step",
		"ℹ️ <b>Команды</b>\n/start — меню участника\n/status — ваше участие\n/cancel — отменить текущий шаг")
}

func MainMenu(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"👋 <b>Welcome!</b>\nWhat would you like to do?",
		"👋 <b>Добро пожаловать!</b>\nЧто вы хотите сделать?")
}

func ChoosePlan(lang i18n.Lang, monthly, yearly int, discounted bool) string {
	text := i18n.Pick(lang,
		fmt.Sprintf("📅 <b>Choose a plan</b>\nMonthly — %d\nYearly — %d", monthly, yearly),
		fmt.Sprintf("📅 <b>Выберите тариф</b>\nМесяц — %d\nГод — %d", monthly, yearly))
	if discounted {
		text += i18n.Pick(lang, "\n\n🎁 Old member pricing applied.", "\n\n🎁 Применена цена для старых участников.")
	}
	return text
}

func ChooseMethod(lang i18n.Lang) string {
	return i18n.Pick(lang, "💳 <b>How will you pay?</b>", "💳 <b>Как вы будете платить?</b>")
}

func PaymentInstructions(lang i18n.Lang, plan string, price int, method, details string) string {
	text := i18n.Pick(lang,
		fmt.Sprintf("🧾 <b>%s plan — %d</b>\nMethod: %s", Escape(plan), price, Escape(method)),
		fmt.Sprintf("🧾 <b>Тариф %s — %d</b>\nСпособ: %s", Escape(plan), price, Escape(method)))
	if strings.TrimSpace(details) != "" {
		text += "\n\n" + Escape(details)
	}
	text += i18n.Pick(lang,
		"\n\nPress <b>Done</b> once you have paid.",
		"\n\nНажмите <b>Готово</b> после оплаты.")
	return text
}

func SendProof(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"📸 Please send a <b>screenshot</b> of the payment.",
		"📸 Пришлите <b>скриншот</b> оплаты.")
}

func ProofReceived(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"✅ <b>Screenshot received</b>\nAn admin will review it shortly.",
		"✅ <b>Скриншот получен</b>\nАдминистратор скоро его проверит.")
}

func OldMemberRequested(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"🔎 <b>Verification requested</b>\nAn admin will confirm your old membership.",
		"🔎 <b>Запрос отправлен</b>\nАдминистратор подтвердит ваше прошлое участие.")
}

func AlreadyConfirmedOldMember(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"🎁 You are already confirmed as an old member.",
		"🎁 Вы уже подтверждены как старый участник.")
}

func StillWaiting(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"⏳ Your request is still waiting for an admin. Thanks for your patience!",
		"⏳ Ваш запрос ещё ждёт администратора. Спасибо за терпение!")
}

func AlreadyActive(lang i18n.Lang, due string) string {
	return i18n.Pick(lang,
		fmt.Sprintf("ℹ️ You already have a membership (due %s). Use <b>Renew Membership</b> instead.", due),
		fmt.Sprintf("ℹ️ У вас уже есть участие (до %s). Выберите <b>Продлить участие</b>.", due))
}

func EndedUseRenew(lang i18n.Lang, due string) string {
	return i18n.Pick(lang,
		fmt.Sprintf("ℹ️ Your membership ended on %s. Choose <b>Renew Membership</b> to restore it.", due),
		fmt.Sprintf("ℹ️ Ваше участие закончилось %s. Выберите <b>Продлить участие</b>, чтобы восстановить его.", due))
}

func NotAMember(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"ℹ️ You don't have a membership yet. Choose <b>Buy Membership</b>.",
		"ℹ️ У вас ещё нет участия. Выберите <b>Купить участие</b>.")
}

func CancelConfirm(lang i18n.Lang, due string) string {
	return i18n.Pick(lang,
		fmt.Sprintf("❓ Stop renewal reminders? Access stays until <b>%s</b>.", due),
		fmt.Sprintf("❓ Отключить продление? Доступ сохранится до <b>%s</b>.", due))
}

func CancelDone(lang i18n.Lang, due string) string {
	return i18n.Pick(lang,
		fmt.Sprintf("👋 Membership cancelled. You keep access until <b>%s</b>.", due),
		fmt.Sprintf("👋 Участие отменено. Доступ сохранится до <b>%s</b>.", due))
}

func CancelAborted(lang i18n.Lang) string {
	return i18n.Pick(lang, "👍 Your membership stays as it is.", "👍 Ваше участие остаётся без изменений.")
}

func AlreadyCancelled(lang i18n.Lang) string {
	return i18n.Pick(lang, "ℹ️ Your membership is already cancelled.", "ℹ️ Ваше участие уже отменено.")
}

func ReminderUpcoming(lang i18n.Lang, daysLeft int, due string) string {
	if daysLeft == 0 {
		return i18n.Pick(lang,
			fmt.Sprintf("⏰ <b>Your membership is due today</b> (%s).\nRenew via /start → Renew Membership.", due),
			fmt.Sprintf("⏰ <b>Ваше участие заканчивается сегодня</b> (%s).\nПродлите: /start → Продлить участие.", due))
	}
	return i18n.Pick(lang,
		fmt.Sprintf("⏰ <b>Your membership is due in %d day(s)</b> (%s).\nRenew via /start → Renew Membership.", daysLeft, due),
		fmt.Sprintf("⏰ <b>До окончания участия %d дн.</b> (%s).\nПродлите: /start → Продлить участие.", daysLeft, due))
}

func MembershipExpired(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"⌛ <b>Your membership has expired.</b>\nRenew via /start → Renew Membership to keep your access.",
		"⌛ <b>Ваше участие закончилось.</b>\nПродлите через /start → Продлить участие, чтобы сохранить доступ.")
}

func GraceGranted(lang i18n.Lang, until string) string {
	return i18n.Pick(lang,
		fmt.Sprintf("🕊 <b>Grace period granted</b> until %s. Please renew before then.", until),
		fmt.Sprintf("🕊 <b>Льготный период</b> до %s. Пожалуйста, продлите участие.", until))
}

func Kicked(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"🚪 Your membership ended and you were removed from the group. You can rejoin any time via /start.",
		"🚪 Участие закончилось, и вы удалены из группы. Вернуться можно в любой момент через /start.")
}

func PaymentApproved(lang i18n.Lang, plan, due, invite string) string {
	text := i18n.Pick(lang,
		fmt.Sprintf("🎉 <b>Payment approved!</b>\nPlan: %s\nValid until: %s", Escape(plan), due),
		fmt.Sprintf("🎉 <b>Оплата подтверждена!</b>\nТариф: %s\nДействует до: %s", Escape(plan), due))
	if invite != "" {
		text += i18n.Pick(lang, "\n\nJoin the group: ", "\n\nВступить в группу: ") + Escape(invite)
	}
	return text
}

func PaymentRejected(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"❌ <b>Payment could not be verified.</b>\nContact an admin or try again via /start.",
		"❌ <b>Оплату не удалось подтвердить.</b>\nСвяжитесь с администратором или попробуйте снова через /start.")
}

func OldMemberVerified(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"🎁 <b>Verified!</b> Old member pricing now applies to your renewals.",
		"🎁 <b>Подтверждено!</b> Для вас действует цена для старых участников.")
}

func OldMemberDenied(lang i18n.Lang) string {
	return i18n.Pick(lang,
		"❌ We could not verify your old membership.",
		"❌ Не удалось подтвердить ваше прошлое участие.")
}

func Status(lang i18n.Lang, state, plan, due string, daysLeft int) string {
	return i18n.Pick(lang,
		fmt.Sprintf("📋 <b>Your membership</b>\nState: %s\nPlan: %s\nDue: %s\nDays left: %d", state, Escape(plan), due, daysLeft),
		fmt.Sprintf("📋 <b>Ваше участие</b>\nСтатус: %s\nТариф: %s\nДо: %s\nОсталось дней: %d", state, Escape(plan), due, daysLeft))
}
