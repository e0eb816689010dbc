// Package dialog implements the intake dialog state machine and the profile
// search orchestration around it. The engine decides; the dispatcher applies
// store mutations and delivers outbound intents, so all decision logic stays
// independently testable.
package dialog

import (
	"strings"

	"github.com/ivolkov/matchbot/internal/session"
	"github.com/ivolkov/matchbot/internal/vk"
)

// Intent describes one outbound message for the gateway to deliver.
type Intent struct {
	Text       string
	Attachment string
	Keyboard   string
}

// Result is the outcome of handling one inbound event. Updates, ShownID and
// Favorite are persistence mutations the caller must apply, in that order,
// before delivering Intents.
type Result struct {
	Updates  []session.Update
	ShownID  *int64
	Favorite *session.Favorite
	Intents  []Intent
}

// User-facing texts. Kept verbatim from the production bot.
const (
	textGreeting      = "Привет! Я бот для знакомств. Готов начать?"
	textAgePrompt     = "Введите ваш возраст (14–100):"
	textAgeInvalid    = "Введите корректный возраст (например: 25):"
	textSexPrompt     = "Укажите пол (мужской/женский):"
	textSexInvalid    = "Выберите: мужской или женский."
	textCityPrompt    = "Введите город:"
	textCityNotFound  = "Город не найден. Попробуйте уточнить название (например: Москва, Мытищи)."
	textCityFound     = "Город: %s. Ищем…"
	textNoMoreMatches = "Анкеты закончились."
	textFavoriteAdded = "✅ %s добавлен(а) в избранное!"
	textFavoriteError = "Не удалось получить данные пользователя."
	textViewFirst     = "Сначала посмотрите анкету."
	textNoFavorites   = "❤️ Ваш список избранных пуст."
	textFavoritesDone = "Это всё избранное."
	textUnknown       = "Неизвестная команда."
)

// Age bounds accepted during the age step.
const (
	minAge = 14
	maxAge = 100
)

const (
	cmdStartSearch   = "начать поиск"
	cmdShowFavorites = "показать избранное"
)

var (
	nextCommands = map[string]bool{
		"далее":                       true,
		"next":                        true,
		"следующий":                   true,
		strings.ToLower(vk.LabelNext): true,
	}
	favoriteCommands = map[string]bool{
		"в избранное":                     true,
		strings.ToLower(vk.LabelFavorite): true,
	}
	sexSynonyms = map[string]int{
		"м":       session.SexMale,
		"мужской": session.SexMale,
		"ж":       session.SexFemale,
		"женский": session.SexFemale,
	}
)
