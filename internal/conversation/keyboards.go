package conversation

// Button labels and callback data shown to the client.
const (
	ShareContactButton = "Передать номер"
	ProcessInfoButton  = "Как мы работаем"
	OtherModelButton   = "Другая модель"
	ManagerYesButton   = "Да, передать менеджеру"
	ManagerNoButton    = "Нет, пока не нужно"
	PassManagerButton  = "Передать заявку менеджеру"
	PassManagerData    = "pass_manager"
)

var (
	brandRows = [][]string{
		{"Lada", "Haval", "Chery"},
		{"Geely", "Changan"},
	}
	cityRows = [][]string{
		{"Москва", "Санкт-Петербург", "Казань"},
		{"Екатеринбург", "Новосибирск", "Краснодар"},
	}
	popularModels = map[string][]string{
		"Lada":    {"Granta", "Vesta", "Niva Travel"},
		"Haval":   {"Jolion", "M6", "Dargo"},
		"Chery":   {"Tiggo 7 Pro Max", "Arrizo 8", "Tiggo 5X"},
		"Geely":   {"Monjaro", "Emgrand", "Coolray"},
		"Changan": {"Uni-K", "CS75 Plus", "Lamore"},
	}
	defaultModels = []string{"Lada Granta", "Haval Jolion", "Chery Tiggo 7 Pro"}
)

// PopularModels returns the suggested models for brand.
func PopularModels(brand string) []string {
	if models, ok := popularModels[brand]; ok {
		return models
	}
	return defaultModels
}

func replyKeyboard(rows [][]string) *Keyboard {
	kb := &Keyboard{Rows: make([][]Button, 0, len(rows))}
	for _, row := range rows {
		buttons := make([]Button, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, Button{Text: label})
		}
		kb.Rows = append(kb.Rows, buttons)
	}
	return kb
}

func phoneKeyboard(withInfo bool) *Keyboard {
	kb := &Keyboard{Rows: [][]Button{{{Text: ShareContactButton, RequestContact: true}}}}
	if withInfo {
		kb.Rows = append(kb.Rows, []Button{{Text: ProcessInfoButton}})
	}
	return kb
}

func brandKeyboard() *Keyboard { return replyKeyboard(brandRows) }

func cityKeyboard() *Keyboard { return replyKeyboard(cityRows) }

// modelKeyboard lays popular models out two per row, followed by the
// free-input option.
func modelKeyboard(brand string) *Keyboard {
	models := PopularModels(brand)
	rows := make([][]string, 0, len(models)/2+2)
	for i := 0; i < len(models); i += 2 {
		rows = append(rows, models[i:min(i+2, len(models))])
	}
	rows = append(rows, []string{OtherModelButton})
	return replyKeyboard(rows)
}

func managerKeyboard() *Keyboard {
	return replyKeyboard([][]string{{ManagerYesButton}, {ManagerNoButton}})
}

func passManagerKeyboard() *Keyboard {
	return &Keyboard{
		Inline: true,
		Rows:   [][]Button{{{Text: PassManagerButton, Data: PassManagerData}}},
	}
}

func removeKeyboard() *Keyboard { return &Keyboard{Remove: true} }
