package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"
)

type Button struct {
	Text         string
	CallbackData string
}

// BuildInlineKeyboard lays buttons out perRow to a row.
func BuildInlineKeyboard(buttons []Button, perRow int) *models.InlineKeyboardMarkup {
	if perRow <= 0 {
		perRow = 2
	}
	pad := func(s string) string { return " " + s + " " }
	rows := make([][]models.InlineKeyboardButton, 0)
	row := make([]models.InlineKeyboardButton, 0, perRow)
	for i, button := range buttons {
		if i > 0 && i%perRow == 0 {
			rows = append(rows, row)
			row = make([]models.InlineKeyboardButton, 0, perRow)
		}
		row = append(row, models.InlineKeyboardButton{
			Text:         pad(button.Text),
			CallbackData: button.CallbackData,
		})
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// BuildReplyKeyboard renders selection-menu options one per row.
func BuildReplyKeyboard(options []string) *models.ReplyKeyboardMarkup {
	rows := make([][]models.KeyboardButton, 0, len(options))
	for _, o := range options {
		rows = append(rows, []models.KeyboardButton{{Text: o}})
	}
	return &models.ReplyKeyboardMarkup{
		Keyboard:        rows,
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

func RemoveKeyboard() *models.ReplyKeyboardRemove {
	return &models.ReplyKeyboardRemove{RemoveKeyboard: true}
}

// Admin decision callbacks are "<scope>:<action>:<user id>".
const (
	ScopeMembership = "mb"
	ScopePayment    = "pay"
	ScopeOldMember  = "old"

	ActionGrace   = "grace"
	ActionKick    = "kick"
	ActionKeep    = "keep"
	ActionApprove = "approve"
	ActionReject  = "reject"
)

func EncodeCallback(scope, action string, userID int64) string {
	return scope + ":" + action + ":" + strconv.FormatInt(userID, 10)
}

func ParseCallback(data string) (scope, action string, userID int64, err error) {
	parts := strings.Split(strings.TrimSpace(data), ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", 0, fmt.Errorf("invalid callback data: %q", data)
	}
	userID, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil || userID == 0 {
		return "", "", 0, fmt.Errorf("invalid callback data: %q", data)
	}
	return parts[0], parts[1], userID, nil
}
