package conversation

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/autopodbor/intake-bot/internal/domain"
	"github.com/autopodbor/intake-bot/internal/progress"
)

const (
	greetingText = "Добро пожаловать в бота автоподбора!\n\n" +
		"Отправьте номер телефона РФ цифрами или нажмите кнопку \"" + ShareContactButton + "\". " +
		"Если хотите узнать, как мы работаем, нажмите \"" + ProcessInfoButton + "\". " +
		"Дальше зададим еще пару вопросов и передадим заявку.\n\n" +
		"Обычно процесс занимает 2-3 минуты\n" +
		"Нужен номер, чтобы связаться и вести заявку\n" +
		"Можно перезапустить диалог в любой момент командой /start"

	processInfoText = "Как мы работаем:\n\n" +
		"1) Собираем ваши требования (бренд, модель, бюджет).\n" +
		"2) Анализируем рынок и подбираем подходящие варианты.\n" +
		"3) Готовим подборку и связываемся для уточнений.\n\n" +
		"Время отклика: 1-2 часа. Готовы начать?"

	contactInvalidText = "Не похоже на российский номер. Отправьте его цифрами или нажмите \"" + ShareContactButton + "\"."
	phoneInvalidText   = "Пожалуйста, отправьте номер РФ (10-11 цифр) или нажмите \"" + ShareContactButton + "\"."
	brandEmptyText     = "Напишите марку текстом или выберите её на клавиатуре."
	modelEmptyText     = "Пожалуйста, укажи модель текстом или выбери её на клавиатуре."
	modelManualText    = "Напиши модель, которую рассматриваешь, вручную."
	cityEmptyText      = "Напишите город текстом или выберите его на клавиатуре."
	yearFormatText     = "Нужен только год цифрами, например 2013."
	yearRangeText      = "Давай возьмём диапазон 1990-2025. Введи год из этого интервала."
	budgetFormatText   = "Введи только цифры, например 1500000."
	budgetRangeText    = "Бюджет должен быть больше нуля. Введи сумму цифрами, например 1500000."
	managerChoiceText  = "Ответьте «" + ManagerYesButton + "» или «" + ManagerNoButton + "»."
	managerOfferText   = "Есть актуальные предложения по вашему запросу. " +
		"Передать контакт менеджеру, чтобы он связался и рассказал детали лично?"
	askNameText        = "Передаю контакт менеджеру - он скоро свяжется. Как к вам обращаться?"
	nameEmptyText      = "Нужен хотя бы один символ, чтобы я мог обращаться по имени."
	onHoldText         = "Спасибо за обратную связь. Заявка остаётся активной, вы сможете передать её менеджеру в любой момент."
	followUpText       = "Как только будете готовы, нажмите кнопку ниже."
	cancelText         = "Окей, остановимся. Если понадобится подбор позже, просто отправь /start."
	restartHintText    = "Чтобы начать подбор, отправьте /start."
	recommendationHead = "🔎 Что можно посмотреть под ваш запрос:\n\n"

	countdownHeader = "🤖 Ожидайте, наш ИИ-менеджер формирует актуальный список моделей.\n" +
		"Это займёт всего несколько секунд."
	countdownDone = "🤖 Подбор готов! Обновил список свежих предложений."

	fallbackClientName = "Коллега"
	missingValue       = "-"
)

// fold trims, NFC-normalizes and case-folds user input for comparisons.
// A Caser is stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

func withProgress(step int, body string) string {
	return progress.Bar(step, domain.TotalSteps) + "\n\n" + body
}

func brandPromptText() string {
	return withProgress(domain.StateBrand.Step(),
		"🚗 <b>Шаг 2: Марка автомобиля</b>\n\n"+
			"Выберите марку, которую вы рассматриваете. "+
			"Представлены самые популярные варианты 2025 года.")
}

func modelPromptText(brand string) string {
	escaped := html.EscapeString(brand)
	return withProgress(domain.StateModel.Step(), fmt.Sprintf(
		"✨ <b>Шаг 3: Модель %s</b>\n\n"+
			"Укажите конкретную модель. Можно выбрать из популярных вариантов или написать свою.\n\n"+
			"🔝 Самые популярные модели %s: %s",
		escaped, escaped, html.EscapeString(strings.Join(PopularModels(brand), ", "))))
}

func cityPromptText() string {
	return withProgress(domain.StateCity.Step(),
		"🏙️ <b>Шаг 4: Город</b>\n\n"+
			"В каком городе будем подбирать автомобиль? "+
			"Это поможет найти актуальные предложения в вашем регионе.")
}

func yearPromptText() string {
	return withProgress(domain.StateYear.Step(),
		"📅 <b>Шаг 5: Год выпуска</b>\n\n"+
			"Укажите максимальный год выпуска («до» какого года рассматриваете). "+
			"Например: 2020")
}

func budgetPromptText() string {
	return withProgress(domain.StateBudget.Step(),
		"💰 <b>Шаг 6: Бюджет</b>\n\n"+
			"Укажите комфортный бюджет в рублях. "+
			"Это позволит подобрать оптимальные варианты. Например: 1500000")
}

func analyzingText() string {
	return withProgress(domain.StateManager.Step(),
		"🤖 <b>Шаг 7: Проверяем подбор</b>\n\n"+
			"Ожидайте, наш ИИ-менеджер формирует актуальный список моделей под ваш запрос.")
}

// countdownFrames returns total+1 countdown texts, from empty to full.
func countdownFrames(total int) []string {
	frames := progress.Frames(total)
	for i, f := range frames {
		frames[i] = countdownHeader + "\n" + f
	}
	return frames
}

func countdownFinal(total int) string {
	return countdownDone + "\n" + progress.Loading(total, total)
}

func handOffText(s *domain.Session) string {
	name := firstNonEmpty(s.ClientName, s.Username, s.ClientLogin, fallbackClientName)
	return name + ", передаю заявку менеджеру. Он свяжется в ближайшее время."
}

// summaryText lists everything collected so far.
func summaryText(s *domain.Session) string {
	year := missingValue
	if s.YearTo != 0 {
		year = strconv.Itoa(s.YearTo)
	}
	budget := missingValue
	if s.Budget != 0 {
		budget = humanize.Comma(s.Budget) + " ₽"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "- Ваш контакт: %s\n", firstNonEmpty(s.ClientName, missingValue))
	fmt.Fprintf(&b, "- Телефон: %s\n", firstNonEmpty(s.Phone, missingValue))
	fmt.Fprintf(&b, "- Логин: %s\n", firstNonEmpty(s.ClientLogin, s.Username, missingValue))
	fmt.Fprintf(&b, "- Марка: %s\n", firstNonEmpty(s.Brand, missingValue))
	fmt.Fprintf(&b, "- Модель: %s\n", firstNonEmpty(s.Model, missingValue))
	fmt.Fprintf(&b, "- Город: %s\n", firstNonEmpty(s.City, missingValue))
	fmt.Fprintf(&b, "- Максимальный год выпуска: %s\n", year)
	fmt.Fprintf(&b, "- Бюджет: %s", budget)
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
