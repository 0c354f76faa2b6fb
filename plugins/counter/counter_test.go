package counter

import (
	"context"
	"math"
	"strings"
	"testing"

	"signedkb/internal/transport/telegram/router"
	"signedkb/internal/transport/transporttest"
	"signedkb/pkg/cbtoken"
	logx "signedkb/pkg/logx"
	"signedkb/pkg/tgui"
)

var codec = cbtoken.NewCodec(cbtoken.NewKey("counter-test"))

func setup(t *testing.T, p *Plugin) (*router.Dispatcher, *transporttest.Recorder) {
	t.Helper()
	rec := &transporttest.Recorder{}
	d := router.NewDispatcher(codec, rec, nil, logx.Nop(), router.Options{})
	d.SetHooks(p.Hooks())
	d.SetCommands(p.Commands())
	return d, rec
}

func press(t *testing.T, d *router.Dispatcher, rec *transporttest.Recorder, label string) string {
	t.Helper()
	last, ok := rec.Last()
	if !ok {
		t.Fatal("nothing sent")
	}
	up, ok := transporttest.Press(last, codec, label)
	if !ok {
		t.Fatalf("no button %q", label)
	}
	d.Process(context.Background(), up)
	now, _ := rec.Last()
	return now.Text
}

func TestCounterRoundTrip(t *testing.T) {
	d, rec := setup(t, New())
	ctx := context.Background()

	d.Process(ctx, transporttest.Command(77, "/counter 5"))
	if len(rec.Sent) != 1 || !strings.Contains(rec.Sent[0].Text, "<code>5</code>") {
		t.Fatalf("sent = %+v", rec.Sent)
	}

	if got := press(t, d, rec, "➕"); !strings.Contains(got, "<code>6</code>") {
		t.Fatalf("after + : %q", got)
	}
	if got := press(t, d, rec, "➕"); !strings.Contains(got, "<code>7</code>") {
		t.Fatalf("after ++ : %q", got)
	}
	if got := press(t, d, rec, "➖"); !strings.Contains(got, "<code>6</code>") {
		t.Fatalf("after - : %q", got)
	}
	if got := press(t, d, rec, "↺ Reset"); !strings.Contains(got, "<code>0</code>") {
		t.Fatalf("after reset: %q", got)
	}
	if len(rec.Answered) != 4 {
		t.Fatalf("answered = %v", rec.Answered)
	}
}

func TestCounterStepConfig(t *testing.T) {
	p := New()
	if err := p.Configure([]byte(`{"step": 10}`)); err != nil {
		t.Fatal(err)
	}
	if err := p.Configure([]byte(`{"step": 0}`)); err == nil {
		t.Fatal("zero step accepted")
	}
	if err := p.Configure([]byte(`{"stride": 2}`)); err == nil {
		t.Fatal("unknown field accepted")
	}

	d, rec := setup(t, p)
	d.Process(context.Background(), transporttest.Command(1, "/counter"))
	if got := press(t, d, rec, "➕"); !strings.Contains(got, "<code>10</code>") {
		t.Fatalf("after + : %q", got)
	}
}

func TestCounterKeyboardLayout(t *testing.T) {
	mk, err := keyboard(3).Render(tgui.RenderContext{ChatID: 1, Codec: codec})
	if err != nil {
		t.Fatal(err)
	}
	// rows 0 and 9 only, in index order
	if len(mk.InlineKeyboard) != 2 || len(mk.InlineKeyboard[0]) != 2 || mk.InlineKeyboard[1][0][tgui.KeyText] != "↺ Reset" {
		t.Fatalf("markup = %+v", mk)
	}
}

func TestCounterSaturates(t *testing.T) {
	d, rec := setup(t, New())
	d.Process(context.Background(), transporttest.Command(1, "/counter 9223372036854775807"))
	if got := press(t, d, rec, "➕"); !strings.Contains(got, "<code>9223372036854775807</code>") {
		t.Fatalf("after + at max: %q", got)
	}

	d, rec = setup(t, New())
	d.Process(context.Background(), transporttest.Command(1, "/counter -9223372036854775808"))
	if got := press(t, d, rec, "➖"); !strings.Contains(got, "<code>-9223372036854775808</code>") {
		t.Fatalf("after - at min: %q", got)
	}
}

func TestAdd(t *testing.T) {
	cases := []struct{ n, delta, want int64 }{
		{1, 2, 3},
		{-1, -2, -3},
		{math.MaxInt64 - 1, 5, math.MaxInt64},
		{math.MinInt64 + 1, -5, math.MinInt64},
		{math.MaxInt64, -1, math.MaxInt64 - 1},
	}
	for _, tc := range cases {
		if got := add(tc.n, tc.delta); got != tc.want {
			t.Errorf("add(%d, %d) = %d, want %d", tc.n, tc.delta, got, tc.want)
		}
	}
}

func TestCounterBadStart(t *testing.T) {
	d, rec := setup(t, New())
	d.Process(context.Background(), transporttest.Command(1, "/counter lots"))
	if len(rec.Sent) != 1 || rec.Sent[0].Opt != nil {
		t.Fatalf("sent = %+v", rec.Sent)
	}
}
