package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	kit "github.com/georgenavi/esimdb-scraper/internal/platform/testkit"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"trace", "trace"},
		{"debug", "debug"},
		{"info", "info"},
		{"warn", "warn"},
		{"WARNING", "warn"},
		{"error", "error"},
		{"fatal", "fatal"},
		{"panic", "panic"},
		{"", "info"},
		{"  loud  ", "info"},
	}
	for _, c := range cases {
		if got := parseLevel(c.in).String(); got != c.want {
			t.Fatalf("parseLevel(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestInit_NamedAndContextFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{
		Level:        "debug",
		Format:       "json",
		Service:      "esimdb-test",
		Writer:       &buf,
		StaticFields: map[string]string{"build": "test"},
	})

	Get().Info().Msg("root-msg")
	Named("walker").Info().Msg("named-msg")

	ctx := WithCountry(WithRun(context.Background(), "run-1"), "testland")
	C(ctx).Warn().Str("field", "price_usd").Msg("ctx-msg")
	C(context.Background()).Debug().Msg("bare-msg")

	out := buf.String()
	kit.MustContain(t, out, "root-msg")
	kit.MustContain(t, out, `"component":"walker"`)
	kit.MustContain(t, out, `"run_id":"run-1"`)
	kit.MustContain(t, out, `"country":"testland"`)
	kit.MustContain(t, out, `"field":"price_usd"`)
	kit.MustContain(t, out, `"service":"esimdb-test"`)
	kit.MustContain(t, out, `"build":"test"`)
	kit.MustContain(t, out, "bare-msg")
}

func TestNewStandalone(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "warn", Format: "json", Writer: &buf, Component: "pg"})
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info leaked at warn level: %s", buf.String())
	}
	kit.MustContain(t, buf.String(), "shown", `"component":"pg"`)
}

func TestWithCountryReplacesPrevious(t *testing.T) {
	ctx := WithCountry(WithCountry(context.Background(), "fr"), "de")
	fs, _ := ctx.Value(ctxKey{}).(ctxFields)
	if len(fs) != 1 || fs[0].v != "de" {
		t.Fatalf("fields = %+v", fs)
	}
}

func TestWithRun_EmptyLeavesContext(t *testing.T) {
	ctx := context.Background()
	if WithRun(ctx, "") != ctx || WithCountry(ctx, "") != ctx {
		t.Fatalf("empty values must not wrap the context")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_SERVICE", "svc-b")
	t.Setenv("LOG_CALLER", "true")
	t.Setenv("LOG_COMPONENT", "cli")
	t.Setenv("LOG_SAMPLE_EVERY", "4")

	opt := FromEnv()
	if opt.Level != "warn" || opt.Format != "json" || opt.Service != "svc-b" || !opt.WithCaller {
		t.Fatalf("FromEnv mismatch: %+v", opt)
	}
	if opt.Component != "cli" || opt.SampleEvery != 4 {
		t.Fatalf("FromEnv mismatch: %+v", opt)
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_SERVICE", "")
	opt := FromEnv()
	if opt.Level != "info" || !strings.HasPrefix(opt.Service, "esimdb") {
		t.Fatalf("FromEnv defaults mismatch: %+v", opt)
	}
}
