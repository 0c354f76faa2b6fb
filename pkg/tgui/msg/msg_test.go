package msg

import (
	"context"
	"testing"

	kit "signedkb/internal/transport"
	"signedkb/internal/transport/transporttest"
	"signedkb/pkg/tgui"
)

func TestBuilderHTML(t *testing.T) {
	kb := tgui.New("demo")
	kb.Row(0).Callback("Go", "go", "")

	m := New().
		Title("🔢", "A & B").
		Blank().
		KV("user", "<bob>").
		Code("x < y").
		Line("1 > 0").
		Inline(kb).
		Build()

	want := "🔢 <b>A &amp; B</b>\n\n• <b>user</b>: &lt;bob&gt;\n<code>x &lt; y</code>\n1 &gt; 0"
	if m.Text != want {
		t.Fatalf("text =\n%q\nwant\n%q", m.Text, want)
	}
	if m.Opt.ParseMode != "HTML" || !m.Opt.DisablePreview || m.Opt.Keyboard != kb {
		t.Fatalf("opt = %+v", m.Opt)
	}
}

func TestBuilderPlain(t *testing.T) {
	m := New().ParseMode("").Title("", "Title").KV("k", "").Line("a <b>").Build()
	if m.Text != "Title\n• k\na <b>" || m.Opt.ParseMode != "" || m.Opt.Keyboard != nil {
		t.Fatalf("message = %+v", m)
	}
}

func TestSendAndEdit(t *testing.T) {
	rec := &transporttest.Recorder{}
	ctx := context.Background()

	ref, err := New().Line("one").Build().Send(ctx, rec, kit.ChatTarget{ChatID: 3})
	if err != nil {
		t.Fatal(err)
	}
	if err := New().Line("two").Build().Edit(ctx, rec, ref); err != nil {
		t.Fatal(err)
	}
	if len(rec.Sent) != 1 || rec.Sent[0].Ref.ChatID != 3 || rec.Edited[0].Text != "two" || rec.Edited[0].Ref != ref {
		t.Fatalf("sent = %+v edited = %+v", rec.Sent, rec.Edited)
	}
}
