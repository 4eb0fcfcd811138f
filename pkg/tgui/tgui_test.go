package tgui

import (
	"errors"
	"strings"
	"testing"
)

func TestDataRoundTrip(t *testing.T) {
	t.Parallel()

	d, err := Data("conv", "day", "3")
	if err != nil || d != "conv:day:3" {
		t.Fatalf("Data = %q, %v", d, err)
	}
	scope, action, payload := ParseData(d)
	if scope != "conv" || action != "day" || payload != "3" {
		t.Fatalf("ParseData = %q %q %q", scope, action, payload)
	}
	if _, action, payload := ParseData("conv:menu"); action != "menu" || payload != "" {
		t.Fatalf("ParseData(conv:menu) = %q %q", action, payload)
	}
	if _, _, payload := ParseData("a:b:c:d"); payload != "c:d" {
		t.Fatalf("payload = %q, want c:d", payload)
	}
}

func TestDataTooLong(t *testing.T) {
	t.Parallel()

	if _, err := Data("conv", "x", strings.Repeat("p", 64)); !errors.Is(err, ErrCallbackDataTooLong) {
		t.Fatalf("err = %v, want ErrCallbackDataTooLong", err)
	}
}

func TestInlineMarkup(t *testing.T) {
	t.Parallel()

	kb := NewInline()
	if kb.Markup() != nil {
		t.Fatalf("empty keyboard has markup")
	}
	kb.Row(Btn("A", "s:a"), Btn("B", "s:b")).Row().Row(Btn("C", "s:c"))
	if kb.Len() != 2 {
		t.Fatalf("rows = %d, want 2", kb.Len())
	}
	rm := kb.Markup()
	if rm == nil || len(rm.InlineKeyboard) != 2 || rm.InlineKeyboard[0][1].Data != "s:b" {
		t.Fatalf("markup = %+v", rm)
	}
}
