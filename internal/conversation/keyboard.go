package conversation

import (
	"fmt"
	"strconv"

	"schedbot/internal/schedule"
)

// MinuteStep is the spacing of the minute grid in menu mode.
const MinuteStep = 5

func menuKeyboard() [][]Button {
	return [][]Button{
		{{Label: "Schedule a new message for a friend", Action: ActionMenu, Value: MenuScheduleOther}},
		{{Label: "Schedule a new message for me", Action: ActionMenu, Value: MenuScheduleSelf}},
		{{Label: "List scheduled messages", Action: ActionMenu, Value: MenuList}},
		{{Label: "Cancel", Action: ActionMenu, Value: MenuCancel}},
	}
}

func dayKeyboard() [][]Button {
	var btns []Button
	for _, d := range schedule.Days() {
		btns = append(btns, Button{Label: d.String(), Action: ActionDay, Value: strconv.Itoa(int(d))})
	}
	return grid(btns, 2)
}

func hourKeyboard() [][]Button {
	btns := make([]Button, 0, 24)
	for h := 0; h < 24; h++ {
		btns = append(btns, Button{Label: fmt.Sprintf("%02d", h), Action: ActionHour, Value: strconv.Itoa(h)})
	}
	return grid(btns, 6)
}

func minuteKeyboard(hour int) [][]Button {
	btns := make([]Button, 0, 60/MinuteStep)
	for m := 0; m < 60; m += MinuteStep {
		btns = append(btns, Button{Label: schedule.FormatClock(hour, m), Action: ActionMinute, Value: strconv.Itoa(m)})
	}
	return grid(btns, 4)
}

func grid(btns []Button, cols int) [][]Button {
	var rows [][]Button
	for len(btns) > 0 {
		n := cols
		if len(btns) < n {
			n = len(btns)
		}
		rows = append(rows, btns[:n:n])
		btns = btns[n:]
	}
	return rows
}
