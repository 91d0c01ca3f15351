package telegram

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	qualityPrefix = "q:"
	helpCallback  = "help"
	buttonsPerRow = 3
)

func qualityKeyboard(ladder []int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, h := range ladder {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%dp", h), qualityPrefix+strconv.Itoa(h)))
		if len(row) == buttonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func parseQualityCallback(data string) (int, bool) {
	raw, ok := strings.CutPrefix(data, qualityPrefix)
	if !ok {
		return 0, false
	}
	h, err := strconv.Atoi(raw)
	if err != nil || h <= 0 {
		return 0, false
	}
	return h, true
}

func startKeyboard(ownerUsername string) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Help", helpCallback)),
	}
	if ownerUsername != "" {
		owner := strings.TrimPrefix(ownerUsername, "@")
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Owner", "https://t.me/"+owner),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

type sudoCommand struct {
	action string
	userID int64
}

// parseSudo reads "add <id>" or "remove <id>". On bad input it returns the
// text to send back.
func parseSudo(args string) (sudoCommand, string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return sudoCommand{}, "Usage: /sudo add <user_id>  OR  /sudo remove <user_id>"
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return sudoCommand{}, "User id must be integer."
	}
	action := strings.ToLower(fields[0])
	if action != "add" && action != "remove" {
		return sudoCommand{}, "Unknown action. use add/remove."
	}
	return sudoCommand{action: action, userID: id}, ""
}

func looksLikeURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
