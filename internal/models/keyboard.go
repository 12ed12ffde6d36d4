package models

import (
	"database/sql/driver"
)

// Button is one inline button. Exactly one of CallbackData and URL is set.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// Keyboard is a chat-agnostic inline button layout.
type Keyboard [][]Button

func DataButton(text, data string) Button {
	return Button{Text: text, CallbackData: data}
}

func URLButton(text, url string) Button {
	return Button{Text: text, URL: url}
}

// Clone returns a deep copy so callers can edit rows without touching a snapshot.
func (k Keyboard) Clone() Keyboard {
	if k == nil {
		return nil
	}
	out := make(Keyboard, len(k))
	for i, row := range k {
		out[i] = append([]Button(nil), row...)
	}
	return out
}

// ReplaceWhere returns a copy where every button matching match is swapped for
// the result of replace.
func (k Keyboard) ReplaceWhere(match func(Button) bool, replace func(Button) Button) Keyboard {
	out := k.Clone()
	for _, row := range out {
		for j, b := range row {
			if match(b) {
				row[j] = replace(b)
			}
		}
	}
	return out
}

func (k *Keyboard) Scan(value interface{}) error {
	var out Keyboard
	if err := scanJSON(value, &out); err != nil {
		return err
	}
	*k = out
	return nil
}

func (k Keyboard) Value() (driver.Value, error) {
	if k == nil {
		return "[]", nil
	}
	return valueJSON([][]Button(k))
}
