package vk

import "encoding/json"

// Button labels are wire contracts: the dialog engine matches inbound text
// against them, so they must stay in sync with the transition table.
const (
	LabelStartSearch   = "Начать поиск"
	LabelShowFavorites = "Показать избранное"
	LabelFavorite      = "❤️ В избранное"
	LabelNext          = "Далее ➡️"
)

type keyboard struct {
	OneTime bool       `json:"one_time,omitempty"`
	Inline  bool       `json:"inline,omitempty"`
	Buttons [][]button `json:"buttons"`
}

type button struct {
	Action buttonAction `json:"action"`
	Color  string       `json:"color"`
}

type buttonAction struct {
	Type    string `json:"type"`
	Label   string `json:"label"`
	Payload string `json:"payload,omitempty"`
}

func textButton(label, color, payload string) button {
	return button{
		Action: buttonAction{Type: "text", Label: label, Payload: payload},
		Color:  color,
	}
}

func mustMarshal(k keyboard) string {
	data, err := json.Marshal(k)
	if err != nil {
		// Keyboards are built from constants; marshal cannot fail.
		panic(err)
	}
	return string(data)
}

// StartKeyboard is the persistent main-menu keyboard.
func StartKeyboard() string {
	return mustMarshal(keyboard{
		OneTime: false,
		Buttons: [][]button{
			{textButton(LabelStartSearch, "primary", "")},
			{textButton(LabelShowFavorites, "secondary", "")},
		},
	})
}

// SearchKeyboard is the inline keyboard attached to every shown profile.
// Payload shapes {"cmd":"fav"} and {"cmd":"next"} are part of the wire
// contract.
func SearchKeyboard() string {
	return mustMarshal(keyboard{
		Inline: true,
		Buttons: [][]button{
			{
				textButton(LabelFavorite, "secondary", `{"cmd":"fav"}`),
				textButton(LabelNext, "primary", `{"cmd":"next"}`),
			},
		},
	})
}
